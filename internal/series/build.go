package series

import (
	"strings"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/geo"
)

// Key is one requested series: the identifier plus what it was built from.
type Key struct {
	ID     string
	Region string            // region code
	Params map[string]string // parameter name -> code
}

// IDs returns the identifiers of keys in order.
func IDs(keys []Key) []string {
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	return ids
}

// Build renders one key per region and parameter combination. Regions form
// the outer loop in input order; the Cartesian product of the parameter lists
// forms the inner loop, varying the last parameter fastest. The result has
// len(regions) * prod(len(list)) keys.
func Build(regions []geo.Region, t Template, params map[string][]string) ([]Key, error) {
	if err := t.ValidateParams(params); err != nil {
		return nil, err
	}

	names := t.ParamNames()
	lists := make([][]string, len(names))
	for i, name := range names {
		lists[i] = params[name]
	}

	combos := product(lists)
	areaWidth := t.areaWidth()

	keys := make([]Key, 0, len(regions)*len(combos))
	for _, r := range regions {
		if areaWidth > 0 && len(r.Code) != areaWidth {
			return nil, apperr.InvalidArgument("region", "code %q must be %d characters", r.Code, areaWidth)
		}
		for _, combo := range combos {
			id, err := render(t, r, combo)
			if err != nil {
				return nil, err
			}
			values := make(map[string]string, len(names))
			for i, name := range names {
				values[name] = combo[i]
			}
			keys = append(keys, Key{ID: id, Region: r.Code, Params: values})
		}
	}
	return keys, nil
}

func render(t Template, r geo.Region, combo []string) (string, error) {
	var b strings.Builder
	next := 0
	for _, f := range t.Fields {
		var (
			s   string
			err error
		)
		switch f.Kind {
		case Literal:
			s = f.Text
		case AreaCode:
			s = r.Code
		case StateCode:
			if r.StateFIPS == "" {
				return "", apperr.InvalidArgument("region", "region %s has no state code", r.Code)
			}
			s, err = pad("state", r.StateFIPS, f.Width)
		case Param:
			s, err = pad(f.Name, combo[next], f.Width)
			next++
		}
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// product returns the Cartesian product of lists in lexicographic list order.
func product(lists [][]string) [][]string {
	out := [][]string{{}}
	for _, list := range lists {
		next := make([][]string, 0, len(out)*len(list))
		for _, prefix := range out {
			for _, v := range list {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v))
			}
		}
		out = next
	}
	return out
}

// Chunk splits ids into consecutive groups of at most size, preserving order.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
