// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// Period is an inclusive pair of civil dates held at UTC midnight.
type Period struct {
	Begin time.Time
	End   time.Time
}

type RegionKind string

const (
	RegionWorld         RegionKind = "world"
	RegionCountry       RegionKind = "country"
	RegionProvince      RegionKind = "province"
	RegionProtectedArea RegionKind = "wdpa"
	RegionUse           RegionKind = "use"
)

// Region identifies the area an alert count is computed for. Only the fields
// relevant to Kind are set.
type Region struct {
	Kind     RegionKind
	Geostore string
	ISO      string
	ID1      int64
	WDPAID   int64
	Use      string
	UseID    int64
}

func World(geostoreHash string) Region {
	return Region{Kind: RegionWorld, Geostore: geostoreHash}
}

func Country(iso string) Region {
	return Region{Kind: RegionCountry, ISO: iso}
}

func Province(iso string, id1 int64) Region {
	return Region{Kind: RegionProvince, ISO: iso, ID1: id1}
}

func ProtectedArea(wdpaID int64) Region {
	return Region{Kind: RegionProtectedArea, WDPAID: wdpaID}
}

func Use(category string, id int64) Region {
	return Region{Kind: RegionUse, Use: category, UseID: id}
}

// String renders a compact identifier used in logs and events, e.g. "province:BRA/12".
func (r Region) String() string {
	switch r.Kind {
	case RegionWorld:
		return "world:" + r.Geostore
	case RegionCountry:
		return "country:" + r.ISO
	case RegionProvince:
		return fmt.Sprintf("province:%s/%d", r.ISO, r.ID1)
	case RegionProtectedArea:
		return "wdpa:" + strconv.FormatInt(r.WDPAID, 10)
	case RegionUse:
		return fmt.Sprintf("use:%s/%d", r.Use, r.UseID)
	default:
		return string(r.Kind)
	}
}

type AlertQuery struct {
	Period        Period
	ConfirmedOnly bool
	// IncludeDates projects the first and last alert date in the period.
	IncludeDates bool
}

type DownloadURLs struct {
	CSV     string
	GeoJSON string
	KML     string
	SHP     string
	SVG     string
}

type AlertResult struct {
	Value        int64
	Period       string
	MinDate      string
	MaxDate      string
	AreaHa       *float64
	DownloadURLs *DownloadURLs
}

type LatestSummary struct {
	MinDate string
	MaxDate string
	Counts  map[string][]int64
}
