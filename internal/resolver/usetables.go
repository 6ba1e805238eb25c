package resolver

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

// UseTables maps use category names to their polygon tables. A strict policy
// rejects unknown names; a lenient one treats them as table names. Table names
// are always rendered as quoted identifiers.
type UseTables struct {
	tables map[string]string
	strict bool
}

var baseUseTables = map[string]string{
	"mining":  "gfw_mining",
	"oilpalm": "gfw_oil_palm",
	"fiber":   "gfw_wood_fiber",
	"logging": "gfw_logging",
}

// StrictUseTables knows the four land-use concessions only.
func StrictUseTables() UseTables {
	return UseTables{tables: baseUseTables, strict: true}
}

// LenientUseTables adds endemic bird areas and passes unknown names through.
func LenientUseTables() UseTables {
	t := make(map[string]string, len(baseUseTables)+1)
	for k, v := range baseUseTables {
		t[k] = v
	}
	t["birds"] = "endemic_bird_areas"
	return UseTables{tables: t, strict: false}
}

func (u UseTables) Table(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", model.ErrInvalidUseCategory)
	}
	if t, ok := u.tables[name]; ok {
		return t, nil
	}
	if u.strict {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidUseCategory, name)
	}
	return name, nil
}
