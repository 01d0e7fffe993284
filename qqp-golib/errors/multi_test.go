package errors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendNil(t *testing.T) {
	err := New("error")
	errs := Append(nil, err).sliceNoCopy()
	require.Len(t, errs, 1)
	require.Equal(t, err, errs[0])

	errs = Append(errorSlice([]error{err}), nil).sliceNoCopy()
	require.Len(t, errs, 1)
	require.Equal(t, err, errs[0])

	var none Errors
	require.Nil(t, Append(none, nil))
}

func TestAppendFlattens(t *testing.T) {
	err0 := New("error0")
	err1 := New("error1")
	err2 := New("error2")

	var errs01 Errors
	errs01 = Append(errs01, err0)
	errs01 = Append(errs01, err1)

	errs := Append(Append(nil, err2), errs01).sliceNoCopy()
	require.Len(t, errs, 3)
	require.Equal(t, err2, errs[0])
	require.Equal(t, err0, errs[1])
	require.Equal(t, err1, errs[2])
}

func TestErrorsMessage(t *testing.T) {
	single := Append(nil, New("missing paths.out"))
	require.Equal(t, "missing paths.out", single.Error())

	double := Append(single, New("cv_num must be positive"))
	require.Equal(t, "2 errors:\n\t* missing paths.out\n\t* cv_num must be positive", double.Error())
}

func TestCombineNil(t *testing.T) {
	err := New("error")
	require.Equal(t, err, Combine(err, nil))
	require.Equal(t, err, Combine(nil, err))
}

func TestCombineMulti(t *testing.T) {
	err0 := New("error0")
	err1 := New("error1")
	err2 := New("error2")
	err3 := New("error3")

	var errs01 Errors
	errs01 = Append(errs01, err0)
	errs01 = Append(errs01, err1)
	var errs23 Errors
	errs23 = Append(errs23, err2)
	errs23 = Append(errs23, err3)

	errs := Combine(errs01, err2).(Errors).sliceNoCopy()
	require.Len(t, errs, 3)
	err2Ref := &errs[2]

	errs = Combine(errs01, errs23).(Errors).sliceNoCopy()
	require.Len(t, errs, 4)
	require.Equal(t, err3, errs[3])

	// the second combine must not overwrite the first
	require.Equal(t, err2, *err2Ref)
}

func TestDefer(t *testing.T) {
	run := func() (err error) {
		defer Defer(&err, func() error { return New("close failed") })
		return New("write failed")
	}
	err := run()
	require.Error(t, err)
	require.Equal(t, 2, err.(Errors).Len())
}
