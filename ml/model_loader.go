package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

const (
	FormatVersion = 1

	DescriptorFile  = "MLmodel"
	PipelineFile    = "pipeline.json"
	PipelineFlavor  = "go_pipeline"
	EstimatorLinear = "linear_regression"
	EstimatorTree   = "decision_tree"
	EstimatorForest = "random_forest"
)

// PipelineSpec is the on-disk form of a Pipeline.
type PipelineSpec struct {
	FormatVersion int                    `json:"format_version"`
	Preprocessor  *ColumnTransformerSpec `json:"preprocessor,omitempty"`
	Estimator     EstimatorSpec          `json:"estimator"`
}

type EstimatorSpec struct {
	Kind      string `json:"kind"`
	NFeatures int    `json:"n_features,omitempty"`

	// linear_regression
	Intercept float64   `json:"intercept,omitempty"`
	Coef      []float64 `json:"coef,omitempty"`

	// decision_tree
	Nodes []TreeNode `json:"nodes,omitempty"`

	// random_forest
	Trees [][]TreeNode `json:"trees,omitempty"`
}

type modelDescriptor struct {
	ArtifactPath   string `yaml:"artifact_path,omitempty"`
	ModelUUID      string `yaml:"model_uuid,omitempty"`
	UTCTimeCreated string `yaml:"utc_time_created,omitempty"`
	Flavors        struct {
		GoPipeline *pipelineFlavor `yaml:"go_pipeline,omitempty"`
	} `yaml:"flavors"`
}

type pipelineFlavor struct {
	PipelineFile  string `yaml:"pipeline_file"`
	FormatVersion int    `yaml:"format_version"`
}

// LoadModel reads a pipeline from a model directory (MLmodel descriptor or bare
// pipeline.json) or from a pipeline JSON file. Every failure wraps ErrModelLoad.
func LoadModel(path string) (*Pipeline, error) {
	file, err := resolvePipelineFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	payload, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	var spec PipelineSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrModelLoad, filepath.Base(file), err)
	}
	pipeline, err := BuildPipeline(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return pipeline, nil
}

func resolvePipelineFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}

	payload, err := os.ReadFile(filepath.Join(path, DescriptorFile))
	if errors.Is(err, os.ErrNotExist) {
		return filepath.Join(path, PipelineFile), nil
	}
	if err != nil {
		return "", err
	}
	var desc modelDescriptor
	if err := yaml.Unmarshal(payload, &desc); err != nil {
		return "", fmt.Errorf("decode %s: %v", DescriptorFile, err)
	}
	flavor := desc.Flavors.GoPipeline
	if flavor == nil {
		return "", fmt.Errorf("%s has no %s flavor", DescriptorFile, PipelineFlavor)
	}
	if flavor.FormatVersion != 0 && flavor.FormatVersion != FormatVersion {
		return "", fmt.Errorf("unsupported flavor format version %d", flavor.FormatVersion)
	}
	name := flavor.PipelineFile
	if name == "" {
		name = PipelineFile
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("pipeline file %q escapes the model directory", name)
	}
	return filepath.Join(path, name), nil
}

// BuildPipeline validates a spec and constructs the runtime pipeline.
func BuildPipeline(spec PipelineSpec) (*Pipeline, error) {
	if spec.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", spec.FormatVersion)
	}
	estimator, err := buildEstimator(spec.Estimator)
	if err != nil {
		return nil, err
	}
	pipeline := &Pipeline{Estimator: estimator}
	if spec.Preprocessor != nil {
		ct, err := NewColumnTransformer(*spec.Preprocessor)
		if err != nil {
			return nil, err
		}
		pipeline.Preprocessor = ct
	}
	return pipeline, nil
}

func buildEstimator(spec EstimatorSpec) (Estimator, error) {
	switch spec.Kind {
	case EstimatorLinear:
		model, err := NewLinearRegression(spec.Intercept, spec.Coef)
		if err != nil {
			return nil, err
		}
		return model, nil
	case EstimatorTree:
		tree, err := NewDecisionTree(spec.Nodes, spec.NFeatures)
		if err != nil {
			return nil, err
		}
		return tree, nil
	case EstimatorForest:
		trees := make([]*DecisionTree, 0, len(spec.Trees))
		for i, nodes := range spec.Trees {
			tree, err := NewDecisionTree(nodes, spec.NFeatures)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
			trees = append(trees, tree)
		}
		forest, err := NewRandomForest(trees)
		if err != nil {
			return nil, err
		}
		return forest, nil
	default:
		return nil, fmt.Errorf("unsupported estimator kind %q", spec.Kind)
	}
}

// SaveModel writes an MLmodel descriptor and pipeline.json into dir.
func SaveModel(dir string, spec PipelineSpec) error {
	if _, err := BuildPipeline(spec); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, PipelineFile), payload, 0o644); err != nil {
		return err
	}

	var desc modelDescriptor
	desc.ArtifactPath = filepath.Base(dir)
	desc.ModelUUID = uuid.NewString()
	desc.UTCTimeCreated = time.Now().UTC().Format("2006-01-02 15:04:05.000000")
	desc.Flavors.GoPipeline = &pipelineFlavor{PipelineFile: PipelineFile, FormatVersion: FormatVersion}
	out, err := yaml.Marshal(&desc)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, DescriptorFile), out, 0o644)
}
