package rhi

import "fmt"

type PrimitiveType uint8

const (
	PrimitivePointList PrimitiveType = iota
	PrimitiveLineList
	PrimitiveLineStrip
	PrimitiveTriangleList
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
)

func (p PrimitiveType) String() string {
	switch p {
	case PrimitivePointList:
		return "point_list"
	case PrimitiveLineList:
		return "line_list"
	case PrimitiveLineStrip:
		return "line_strip"
	case PrimitiveTriangleList:
		return "triangle_list"
	case PrimitiveTriangleStrip:
		return "triangle_strip"
	case PrimitiveTriangleFan:
		return "triangle_fan"
	}
	return fmt.Sprintf("PrimitiveType(%d)", p)
}

// PrimitiveCount returns how many primitives n vertices (or indices) form
// for the topology. Never negative.
func PrimitiveCount(p PrimitiveType, n int) int {
	if n <= 0 {
		return 0
	}
	count := 0
	switch p {
	case PrimitivePointList:
		count = n
	case PrimitiveLineList:
		count = n / 2
	case PrimitiveLineStrip:
		count = n - 1
	case PrimitiveTriangleList:
		count = n / 3
	case PrimitiveTriangleStrip, PrimitiveTriangleFan:
		count = n - 2
	}
	if count < 0 {
		return 0
	}
	return count
}

// ElementCount is the inverse of PrimitiveCount: how many vertices or
// indices n primitives consume.
func ElementCount(p PrimitiveType, n int) int {
	if n <= 0 {
		return 0
	}
	switch p {
	case PrimitivePointList:
		return n
	case PrimitiveLineList:
		return n * 2
	case PrimitiveLineStrip:
		return n + 1
	case PrimitiveTriangleList:
		return n * 3
	}
	return n + 2
}
