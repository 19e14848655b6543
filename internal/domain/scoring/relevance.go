// Package scoring implements the deterministic relevance and area-safety
// calculations. Everything here is pure: fixed inputs produce bit-identical
// outputs, and nothing touches I/O or shared state.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dhruv1108git/pulse/internal/domain"
	"github.com/dhruv1108git/pulse/internal/domain/geo"
)

// Field weights for keyword matching, title > description > type.
const (
	titleWeight       = 3.0
	descriptionWeight = 2.0
	typeWeight        = 1.5
)

// Weights controls how the five components blend into the final score.
// The combination is additive-then-normalized: a zero component lowers the
// score proportionally but never wipes out an otherwise strong match.
type Weights struct {
	Text     float64
	Vector   float64
	Geo      float64
	Recency  float64
	Severity float64
}

// Config holds the tunable constants of the relevance calculation.
type Config struct {
	Weights Weights
	// TextSaturation is the raw keyword score at which text_score reaches 0.5.
	TextSaturation float64
	// GeoScaleKm is the e-folding distance of the proximity decay.
	GeoScaleKm float64
	// RecencyScale is the e-folding age of the recency decay.
	RecencyScale time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Text:     1.0,
			Vector:   1.0,
			Geo:      1.5,
			Recency:  2.0,
			Severity: 1.5,
		},
		TextSaturation: 4.0,
		GeoScaleKm:     10.0,
		RecencyScale:   7 * 24 * time.Hour,
	}
}

// Components are the normalized [0,1] signals behind a relevance score.
type Components struct {
	Text     float64
	Vector   float64
	Geo      float64
	Recency  float64
	Severity float64
}

// Engine computes relevance scores. Stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine; zero-valued config fields fall back to defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.TextSaturation <= 0 {
		cfg.TextSaturation = def.TextSaturation
	}
	if cfg.GeoScaleKm <= 0 {
		cfg.GeoScaleKm = def.GeoScaleKm
	}
	if cfg.RecencyScale <= 0 {
		cfg.RecencyScale = def.RecencyScale
	}
	return &Engine{cfg: cfg}
}

// ComputeRelevance scores one incident against a query fingerprint.
// userLoc may be nil; the geo component is then neutral (1.0).
func (e *Engine) ComputeRelevance(
	inc domain.Incident, fp domain.Fingerprint, userLoc *domain.GeoPoint, now time.Time,
) (float64, Components) {
	c := Components{
		Text:     e.textScore(inc, fp.Intent.Keywords),
		Vector:   vectorScore(fp.Embedding, inc.Embedding),
		Geo:      e.geoScore(inc.Location, userLoc),
		Recency:  e.recencyScore(inc.Timestamp, now),
		Severity: severityScore(inc.Severity, fp.Intent.SeverityHint),
	}

	w := e.cfg.Weights
	sum := w.Text + w.Vector + w.Geo + w.Recency + w.Severity
	if sum == 0 {
		return 0, c
	}
	score := (w.Text*c.Text + w.Vector*c.Vector + w.Geo*c.Geo +
		w.Recency*c.Recency + w.Severity*c.Severity) / sum
	return score, c
}

// textScore is a saturating keyword-match strength over the weighted fields.
// raw/(raw+saturation) maps any non-negative raw score into [0,1).
func (e *Engine) textScore(inc domain.Incident, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	title := strings.ToLower(inc.Title)
	desc := strings.ToLower(inc.Description)
	rtype := strings.ToLower(inc.ReportType)

	var raw float64
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) {
			raw += titleWeight
		}
		if strings.Contains(desc, kw) {
			raw += descriptionWeight
		}
		if strings.Contains(rtype, kw) {
			raw += typeWeight
		}
	}
	return raw / (raw + e.cfg.TextSaturation)
}

// vectorScore is cosine similarity clipped at zero; 0 when either vector is
// absent or the dimensions disagree.
func vectorScore(query, doc []float32) float64 {
	if len(query) == 0 || len(doc) == 0 || len(query) != len(doc) {
		return 0
	}
	var dot, qn, dn float64
	for i := range query {
		q := float64(query[i])
		d := float64(doc[i])
		dot += q * d
		qn += q * q
		dn += d * d
	}
	if qn == 0 || dn == 0 {
		return 0
	}
	return math.Max(0, dot/(math.Sqrt(qn)*math.Sqrt(dn)))
}

// geoScore decays exponentially with distance. Missing coordinates on either
// side make the component neutral so the incident is not penalized for data
// the index does not have.
func (e *Engine) geoScore(incLoc, userLoc *domain.GeoPoint) float64 {
	if userLoc == nil || incLoc == nil {
		return 1.0
	}
	distKm := geo.Haversine(userLoc.Lat, userLoc.Lon, incLoc.Lat, incLoc.Lon) / 1000.0
	return math.Exp(-distKm / e.cfg.GeoScaleKm)
}

func (e *Engine) recencyScore(ts, now time.Time) float64 {
	age := now.Sub(ts)
	if age < 0 {
		age = 0
	}
	return math.Exp(-float64(age) / float64(e.cfg.RecencyScale))
}

// severityScore rewards declared severity only when it falls inside the band
// the query implied; otherwise the component is neutral (0.5).
func severityScore(severity int, hint domain.SeverityHint) float64 {
	min, max := hint.Band()
	if min == 0 || severity < min || severity > max {
		return 0.5
	}
	return float64(severity) / 5.0
}

// Scored pairs an incident with its relevance score.
type Scored struct {
	Incident   domain.Incident
	Score      float64
	Components Components
}

// Rank orders scored incidents descending by score; equal scores break toward
// the more recent incident. Sorting is stable so fully tied entries keep
// their input order.
func Rank(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Incident.Timestamp.After(scored[j].Incident.Timestamp)
	})
}
