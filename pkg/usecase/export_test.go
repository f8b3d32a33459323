package usecase

import "io"

// SetOpenTemp replaces the temporary file factory and returns a restore func
func SetOpenTemp(fn func(name string) (io.WriteCloser, error)) func() {
	old := openTemp
	openTemp = fn
	return func() { openTemp = old }
}

var (
	ChooseURL = chooseURL
	TempName  = tempName
)
