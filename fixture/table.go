package fixture

import (
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/dataframe"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// ClusterColumn names the predicted cluster column of clustering tables.
const ClusterColumn = "Cluster"

// ProbabilityPrefix prefixes every class probability column.
const ProbabilityPrefix = "probability_"

// AffinityPrefix prefixes every cluster affinity column.
const AffinityPrefix = "affinity_"

// Prediction holds everything a model emits for one dataset.
type Prediction struct {
	// Values are the predicted labels, cluster indices or regression targets.
	Values []float64
	// Proba holds class probabilities in Classes order, nil unless requested.
	Proba   mat.Matrix
	Classes []float64
	// Affinity holds squared distances to each cluster centre, nil unless
	// requested.
	Affinity *mat.Dense
}

// Predict runs est on X and collects the extras its ModelSpec asks for.
func Predict(d *Dataset, spec ModelSpec, est model.Estimator, X mat.Matrix) (*Prediction, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return nil, err
	}
	p := &Prediction{Values: mat.Col(nil, 0, pred)}
	if !spec.Extra {
		return p, nil
	}

	switch d.Task {
	case Classification:
		clf, ok := est.(model.ProbabilisticClassifier)
		if !ok {
			return nil, errors.NewValueError("fixture.Predict", spec.Name+" does not predict probabilities")
		}
		if p.Proba, err = clf.PredictProba(X); err != nil {
			return nil, err
		}
		p.Classes = clf.Classes()
	case Clustering:
		cl, ok := est.(model.Clusterer)
		if !ok {
			return nil, errors.NewValueError("fixture.Predict", spec.Name+" has no cluster centres")
		}
		p.Affinity = squaredDistances(X, cl.ClusterCenters())
	}
	return p, nil
}

// squaredDistances returns ||x_i - c_k||² for every row and centre.
func squaredDistances(X mat.Matrix, centers [][]float64) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, len(centers), nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		for k, center := range centers {
			s := 0.0
			for j, v := range row {
				diff := v - center[j]
				s += diff * diff
			}
			out.Set(i, k, s)
		}
	}
	return out
}

// labelEncoder returns the encoder of the mapper's label step, or nil when the
// label is numeric.
func labelEncoder(mapper *preprocessing.DataFrameMapper) *preprocessing.LabelEncoder {
	if mapper == nil || len(mapper.Steps) == 0 {
		return nil
	}
	enc, _ := mapper.Steps[len(mapper.Steps)-1].Encoder.(*preprocessing.LabelEncoder)
	return enc
}

// Frame renders the prediction as the output table. String labels encoded by
// the mapper's label step are decoded back to their names.
func (p *Prediction) Frame(d *Dataset, mapper *preprocessing.DataFrameMapper) (*dataframe.Frame, error) {
	f := dataframe.New()
	switch d.Task {
	case Clustering:
		if err := f.AddFloats(ClusterColumn, p.Values); err != nil {
			return nil, err
		}
		if p.Affinity != nil {
			_, k := p.Affinity.Dims()
			names := make([]string, k)
			for i := range names {
				names[i] = AffinityPrefix + dataframe.FormatFloat(float64(i))
			}
			if err := f.AddMatrix(names, p.Affinity); err != nil {
				return nil, err
			}
		}
		return f, nil

	case Classification:
		enc := labelEncoder(mapper)
		if enc != nil {
			labels, err := enc.InverseLabels(p.Values)
			if err != nil {
				return nil, err
			}
			if err := f.AddStrings(d.Label, labels); err != nil {
				return nil, err
			}
		} else if err := f.AddFloats(d.Label, p.Values); err != nil {
			return nil, err
		}
		if p.Proba != nil {
			names := make([]string, len(p.Classes))
			for i, c := range p.Classes {
				names[i] = dataframe.FormatFloat(c)
			}
			if enc != nil {
				decoded, err := enc.InverseLabels(p.Classes)
				if err != nil {
					return nil, err
				}
				names = decoded
			}
			for i := range names {
				names[i] = ProbabilityPrefix + names[i]
			}
			if err := f.AddMatrix(names, p.Proba); err != nil {
				return nil, err
			}
		}
		return f, nil

	default:
		if err := f.AddFloats(d.Label, p.Values); err != nil {
			return nil, err
		}
		return f, nil
	}
}
