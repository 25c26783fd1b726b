package learner

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/taskrouter/internal/model"
)

// featureCount is the regression feature vector size: intercept, declared
// latency in seconds, and required-capability count.
const featureCount = 3

// minSegmentSamples is the training floor below which a (backend, task-type)
// segment falls back to the global model.
const minSegmentSamples = 10

type sample struct {
	backend  string
	taskType string
	latency  float64
	capCount float64
	quality  float64
	cost     float64
}

func newSample(o model.OutcomeRecord) sample {
	return sample{
		backend:  o.SelectedBackend,
		taskType: o.TaskType,
		latency:  float64(o.ActualLatencyMS) / 1000,
		capCount: float64(len(o.RequiredCapabilities)),
		quality:  o.ActualQuality,
		cost:     o.ActualCost,
	}
}

func (s sample) features() [featureCount]float64 {
	return [featureCount]float64{1, s.latency, s.capCount}
}

type segmentModel struct {
	quality [featureCount]float64
	cost    [featureCount]float64
}

func (m segmentModel) predict(f [featureCount]float64) (quality, cost float64) {
	for i := 0; i < featureCount; i++ {
		quality += m.quality[i] * f[i]
		cost += m.cost[i] * f[i]
	}
	return quality, cost
}

// Predictor is an immutable trained model. Replaced wholesale via atomic
// pointer swap; methods are safe for concurrent readers.
type Predictor struct {
	segments map[string]segmentModel
	global   segmentModel

	QualityMSE float64
	CostMSE    float64
	TrainedOn  int
}

func segmentKey(backend, taskType string) string {
	return backend + "\x00" + taskType
}

// Predict estimates quality and cost for a prospective routing decision.
func (p *Predictor) Predict(backend, taskType string, capCount int, latencyMS int64) (quality, cost float64) {
	s := sample{latency: float64(latencyMS) / 1000, capCount: float64(capCount)}
	m, ok := p.segments[segmentKey(backend, taskType)]
	if !ok {
		m = p.global
	}
	q, c := m.predict(s.features())
	return clamp(q, 0, 10), math.Max(0, c)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Train fits least-squares models on an 80/20 train/validation split and
// reports held-out mean squared error. Segments with too few samples share
// the global model.
func Train(samples []sample) (*Predictor, error) {
	if len(samples) < minSegmentSamples {
		return nil, eris.Errorf("learner: %d samples is too few to train", len(samples))
	}

	// Deterministic split: every fifth sample held out for validation.
	var train, validate []sample
	for i, s := range samples {
		if i%5 == 4 {
			validate = append(validate, s)
		} else {
			train = append(train, s)
		}
	}

	p := &Predictor{
		segments:  make(map[string]segmentModel),
		TrainedOn: len(train),
	}

	global, err := fitSegment(train)
	if err != nil {
		return nil, err
	}
	p.global = global

	bySegment := make(map[string][]sample)
	for _, s := range train {
		k := segmentKey(s.backend, s.taskType)
		bySegment[k] = append(bySegment[k], s)
	}
	for k, seg := range bySegment {
		if len(seg) < minSegmentSamples {
			continue
		}
		m, err := fitSegment(seg)
		if err != nil {
			continue
		}
		p.segments[k] = m
	}

	if len(validate) > 0 {
		var qSum, cSum float64
		for _, s := range validate {
			q, c := p.Predict(s.backend, s.taskType, int(s.capCount), int64(s.latency*1000))
			qSum += (q - s.quality) * (q - s.quality)
			cSum += (c - s.cost) * (c - s.cost)
		}
		p.QualityMSE = qSum / float64(len(validate))
		p.CostMSE = cSum / float64(len(validate))
	}

	return p, nil
}

func fitSegment(samples []sample) (segmentModel, error) {
	q, err := ols(samples, func(s sample) float64 { return s.quality })
	if err != nil {
		return segmentModel{}, err
	}
	c, err := ols(samples, func(s sample) float64 { return s.cost })
	if err != nil {
		return segmentModel{}, err
	}
	return segmentModel{quality: q, cost: c}, nil
}

// ols solves the normal equations for a least-squares fit of target against
// the sample features. Singular systems degrade to a mean-only model.
func ols(samples []sample, target func(sample) float64) ([featureCount]float64, error) {
	if len(samples) == 0 {
		return [featureCount]float64{}, eris.New("learner: no samples to fit")
	}

	var xtx [featureCount][featureCount]float64
	var xty [featureCount]float64
	for _, s := range samples {
		f := s.features()
		y := target(s)
		for i := 0; i < featureCount; i++ {
			xty[i] += f[i] * y
			for j := 0; j < featureCount; j++ {
				xtx[i][j] += f[i] * f[j]
			}
		}
	}

	coef, ok := solve(xtx, xty)
	if !ok {
		var mean float64
		for _, s := range samples {
			mean += target(s)
		}
		mean /= float64(len(samples))
		return [featureCount]float64{mean, 0, 0}, nil
	}
	return coef, nil
}

// solve performs Gaussian elimination with partial pivoting on a small
// dense system.
func solve(a [featureCount][featureCount]float64, b [featureCount]float64) ([featureCount]float64, bool) {
	const eps = 1e-12

	for col := 0; col < featureCount; col++ {
		pivot := col
		for r := col + 1; r < featureCount; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < eps {
			return [featureCount]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < featureCount; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < featureCount; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	var x [featureCount]float64
	for r := featureCount - 1; r >= 0; r-- {
		x[r] = b[r]
		for c := r + 1; c < featureCount; c++ {
			x[r] -= a[r][c] * x[c]
		}
		x[r] /= a[r][r]
	}
	return x, true
}
