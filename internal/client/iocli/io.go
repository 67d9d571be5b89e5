// Package iocli is the console of the packsync CLI.
package iocli

// IO вывод и интерактивный ввод CLI
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	// ReadSecret reads a line without echo when the input is a terminal
	ReadSecret(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
