package math

// Number is a constraint covering the numeric types used across the codebase.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Min returns the smallest of the provided values.
func Min[T Number](a T, b ...T) T {
	min := a
	for _, v := range b {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest of the provided values.
func Max[T Number](a T, b ...T) T {
	max := a
	for _, v := range b {
		if v > max {
			max = v
		}
	}
	return max
}
