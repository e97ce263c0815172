package dcerr

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

// DumpChain walks an error chain and prints each layer with its type and,
// for struct errors, its exported fields. Useful when a DataSource
// operation fails deep inside a backend adapter and the wrapped %w chain
// alone doesn't show enough.
func DumpChain(err error) {
	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Printf("[%d] %T: %v\n", i, err, err)

		rv := reflect.ValueOf(err)
		rt := reflect.TypeOf(err)
		if rt != nil && rt.Kind() == reflect.Ptr {
			rv = rv.Elem()
			rt = rt.Elem()
		}
		if rt != nil && rt.Kind() == reflect.Struct {
			for j := 0; j < rt.NumField(); j++ {
				f := rt.Field(j)
				v := rv.Field(j)
				if v.CanInterface() {
					fmt.Printf("    field %s (%s): %s\n", f.Name, f.Type, spew.Sdump(v.Interface()))
				}
			}
		}
		i++
	}
}
