package gate

// Scalar is the smoothed value the indicator renders. The gate writes target
// values with Set and watches Get to know when the animation has caught up.
type Scalar interface {
	Set(target float64)
	Get() float64
	Subscribe(onChange func(value float64)) Disposable
}
