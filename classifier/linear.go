package classifier

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// LinearModel 多类线性打分模型：score = W·((x-mean)/scale) + b，取最大分对应的标签
type LinearModel struct {
	weights *mat.Dense
	bias    *mat.VecDense
	mean    []float64
	scale   []float64
	labels  []int
}

// linearModelFile 模型文件格式（由离线训练脚本导出）
type linearModelFile struct {
	Labels  []int       `yaml:"labels"`
	Weights [][]float64 `yaml:"weights"`
	Bias    []float64   `yaml:"bias"`
	Mean    []float64   `yaml:"mean,omitempty"`
	Scale   []float64   `yaml:"scale,omitempty"`
}

// NewLinearModel 由权重矩阵（类别 × 特征）和偏置创建模型
func NewLinearModel(labels []int, weights [][]float64, bias []float64) (*LinearModel, error) {
	k := len(weights)
	if k == 0 || len(weights[0]) == 0 {
		return nil, fmt.Errorf("权重矩阵为空")
	}
	if len(labels) != k || len(bias) != k {
		return nil, fmt.Errorf("标签数 %d、偏置数 %d 与类别数 %d 不一致", len(labels), len(bias), k)
	}
	f := len(weights[0])
	data := make([]float64, 0, k*f)
	for i, row := range weights {
		if len(row) != f {
			return nil, fmt.Errorf("第 %d 行权重长度 %d，期望 %d", i, len(row), f)
		}
		data = append(data, row...)
	}
	return &LinearModel{
		weights: mat.NewDense(k, f, data),
		bias:    mat.NewVecDense(k, append([]float64(nil), bias...)),
		labels:  append([]int(nil), labels...),
	}, nil
}

// SetStandardization 设置特征标准化参数
func (m *LinearModel) SetStandardization(mean, scale []float64) error {
	f := m.Features()
	if (mean != nil && len(mean) != f) || (scale != nil && len(scale) != f) {
		return fmt.Errorf("标准化参数长度与特征数 %d 不一致", f)
	}
	m.mean, m.scale = mean, scale
	return nil
}

// LoadLinearModel 从 YAML 文件加载模型
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模型文件失败：%w", err)
	}
	var file linearModelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析模型文件失败：%w", err)
	}
	m, err := NewLinearModel(file.Labels, file.Weights, file.Bias)
	if err != nil {
		return nil, err
	}
	if err := m.SetStandardization(file.Mean, file.Scale); err != nil {
		return nil, err
	}
	return m, nil
}

// Features 模型期望的特征长度
func (m *LinearModel) Features() int {
	if m == nil || m.weights == nil {
		return 0
	}
	_, f := m.weights.Dims()
	return f
}

func (m *LinearModel) Ready() bool { return m != nil && m.weights != nil }

func (m *LinearModel) Predict(features []float64) (int, error) {
	if !m.Ready() {
		return 0, fmt.Errorf("模型未载入")
	}
	k, f := m.weights.Dims()
	if len(features) != f {
		return 0, fmt.Errorf("特征长度 %d 与模型期望 %d 不一致", len(features), f)
	}

	x := make([]float64, f)
	for i, v := range features {
		if m.mean != nil {
			v -= m.mean[i]
		}
		if m.scale != nil && m.scale[i] != 0 {
			v /= m.scale[i]
		}
		x[i] = v
	}

	scores := mat.NewVecDense(k, nil)
	scores.MulVec(m.weights, mat.NewVecDense(f, x))
	scores.AddVec(scores, m.bias)

	best := 0
	for i := 0; i < k; i++ {
		s := scores.AtVec(i)
		if math.IsNaN(s) {
			return 0, fmt.Errorf("类别 %d 得分为 NaN", m.labels[i])
		}
		if s > scores.AtVec(best) {
			best = i
		}
	}
	return m.labels[best], nil
}
