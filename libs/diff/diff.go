package diff

import (
	"math"
	"reflect"

	odiff "github.com/r3labs/diff/v3"
)

const epsilon = 1e-9

func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(odiff.CustomValueDiffers(&MoneyComparer{}))
	if err != nil {
		panic(err)
	}
	return ret
}

// MoneyComparer treats float64 fields as money: values closer than epsilon
// are equal, so float noise never shows up as a change.
type MoneyComparer struct{}

var (
	floatType = reflect.TypeOf(float64(0))
)

// Match check is field match this custom type
func (c MoneyComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == reflect.Float64 && a.Type() == floatType
	bok := b.Kind() == reflect.Float64 && b.Type() == floatType
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff check is diff or not
func (c MoneyComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, cl *odiff.Changelog, path []string, a reflect.Value, b reflect.Value, _ interface{}) error {
	valA := reflect.Indirect(a)
	valB := reflect.Indirect(b)

	if !valA.IsValid() || !valB.IsValid() {
		if valA.IsValid() != valB.IsValid() {
			cl.Add(odiff.UPDATE, path, a.Interface(), b.Interface())
		}
		return nil
	}

	f1 := valA.Float()
	f2 := valB.Float()

	if math.Abs(f1-f2) > epsilon {
		cl.Add(odiff.UPDATE, path, f1, f2)
	}
	return nil
}

// InsertParentDiffer do something with parent,
// float64 is leaf, so do nothing
func (c MoneyComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
}
