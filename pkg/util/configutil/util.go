// Package configutil helps publishing config defaults.
package configutil

// SetDefault abstracts setting Viper defaults.
type SetDefault interface {
	SetDefault(key string, value any)
}

// SetDefaultFunc implements SetDefault.
type SetDefaultFunc func(key string, value any)

func (f SetDefaultFunc) SetDefault(key string, value any) {
	if f == nil {
		return
	}
	f(key, value)
}

// WithPrefix returns a SetDefault that prepends prefix and a dot to every key.
func WithPrefix(prefix string, to SetDefault) SetDefault {
	return SetDefaultFunc(func(key string, value any) {
		to.SetDefault(prefix+"."+key, value)
	})
}
