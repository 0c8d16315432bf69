package normalizer

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"call-analysis-go/internal/types"
)

// roleWords are titles and service words that telephony systems prepend or
// append to operator names.
var roleWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"оператор", "компания", "неизвест", "неизвестн", "неизвестный", "неизвестная",
		"тп", "св", "торговый", "представитель", "ип", "ооо", "зао", "оао",
		"менеджер", "специалист", "консультант", "сотрудник", "работник",
		"младший", "старший", "ведущий", "главный", "заместитель", "помощник",
		"директор", "руководитель", "начальник", "заведующий", "координатор",
		"супервайзер", "супервизор", "куратор", "наставник", "тренер",
		"мл", "ст", "вед", "гл", "зам", "пом", "нач", "зав", "коорд",
	} {
		roleWords[w] = struct{}{}
	}
}

// NormalizeName reduces a display name to "surname name" in lower case.
func NormalizeName(name string) string {
	lower := cases.Lower(language.Und)
	kept := make([]string, 0, 2)
	for _, word := range strings.Fields(name) {
		w := strings.Map(func(r rune) rune {
			if isWordRune(r) {
				return r
			}
			return -1
		}, lower.String(word))
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := roleWords[w]; stop {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 2 {
			break
		}
	}
	return strings.Join(kept, " ")
}

// OperatorCache indexes canonical operators by normalized name.
type OperatorCache struct {
	byName map[string]types.Operator
	names  []string
}

func NewOperatorCache(ops []types.Operator) *OperatorCache {
	c := &OperatorCache{byName: make(map[string]types.Operator, len(ops))}
	for _, op := range ops {
		key := NormalizeName(op.FullName)
		if key == "" {
			continue
		}
		if _, ok := c.byName[key]; !ok {
			c.names = append(c.names, key)
		}
		c.byName[key] = op
	}
	return c
}

func (c *OperatorCache) Len() int { return len(c.byName) }

// Lookup is an exact lookup on the normalized name.
func (c *OperatorCache) Lookup(name string) (types.Operator, bool) {
	key := NormalizeName(name)
	if key == "" {
		return types.Operator{}, false
	}
	op, ok := c.byName[key]
	return op, ok
}

// Closest returns the known normalized name with the smallest edit distance.
// Used only to make the unmatched-operator warning actionable.
func (c *OperatorCache) Closest(name string) (string, int) {
	key := NormalizeName(name)
	best, bestDist := "", -1
	for _, n := range c.names {
		d := levenshtein.ComputeDistance(key, n)
		if bestDist < 0 || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, bestDist
}

// FilterKnownOperators keeps records whose operator is in the cache, rewriting
// their operator id and name to canonical values. It returns the kept records
// and the sorted, deduplicated original names that did not match.
func FilterKnownOperators(records []types.CallRecord, cache *OperatorCache, log *logrus.Entry) ([]types.CallRecord, []string) {
	log = log.WithField("component", "identity-normalizer")
	kept := make([]types.CallRecord, 0, len(records))
	missing := map[string]struct{}{}
	for _, rec := range records {
		op, ok := cache.Lookup(rec.OperatorName)
		if !ok {
			missing[rec.OperatorName] = struct{}{}
			continue
		}
		rec.OperatorID = strconv.FormatInt(op.ID, 10)
		rec.OperatorName = op.FullName
		kept = append(kept, rec)
	}

	unmatched := make([]string, 0, len(missing))
	for name := range missing {
		unmatched = append(unmatched, name)
	}
	sort.Strings(unmatched)

	log.WithFields(logrus.Fields{
		"total":    len(records),
		"kept":     len(kept),
		"excluded": len(records) - len(kept),
	}).Info("operators matched against directory")
	for _, name := range unmatched {
		entry := log.WithField("operator", name)
		if closest, dist := cache.Closest(name); closest != "" {
			entry = entry.WithFields(logrus.Fields{"closest": closest, "distance": dist})
		}
		entry.Warn("operator not found in directory")
	}
	return kept, unmatched
}
