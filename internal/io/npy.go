package io

import (
	"fmt"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
)

// DenseToNpy writes a matrix to Python numpy npy binary file
func DenseToNpy(path string, matrix *mat.Dense) error {
	rows, cols := matrix.Dims()

	// RawMatrix data is only contiguous when the stride equals the width
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		data = append(data, matrix.RawRowView(i)...)
	}

	return writeNpy(path, []int{rows, cols}, data)
}

// VectorToNpy writes a vector to a one-dimensional npy file
func VectorToNpy(path string, vec []float64) error {
	return writeNpy(path, []int{len(vec)}, vec)
}

func writeNpy(path string, shape []int, data []float64) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("[DenseToNpy] failed to open file: %w", err)
	}
	w.Shape = shape
	w.Version = 2

	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("[DenseToNpy] failed to write file: %w", err)
	}

	return nil
}

// NpyToDense reads Python numpy npy binary file as a matrix.
// A one-dimensional array becomes a single row.
func NpyToDense(path string) (*mat.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("[NpyToDense] failed to open file: %w", err)
	}

	var rows, cols int
	switch len(r.Shape) {
	case 1:
		rows, cols = 1, r.Shape[0]
	case 2:
		rows, cols = r.Shape[0], r.Shape[1]
	default:
		return nil, fmt.Errorf("[NpyToDense] %s: expected a 1-D or 2-D array, got shape %v", path, r.Shape)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("[NpyToDense] %s: empty array of shape %v", path, r.Shape)
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("[NpyToDense] failed to read file: %w", err)
	}

	if r.ColumnMajor {
		return mat.DenseCopyOf(mat.NewDense(cols, rows, data).T()), nil
	}

	return mat.NewDense(rows, cols, data), nil
}
