package model

import "errors"

var (
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrRegionNotFound      = errors.New("region not found")
	ErrInvalidUseCategory  = errors.New("invalid use category")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrAreaTooLarge        = errors.New("area too large")
)

// AreaTooLargeMessage is returned to callers when the raster service refuses a polygon.
const AreaTooLargeMessage = "The area you have selected is quite large and cannot be analyzed on-the-fly. Please select a smaller area and try again."
