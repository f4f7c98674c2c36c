//go:build !rp2040

package monitor

import (
	"io"
	"os"
)

func Console() io.Writer { return os.Stdout }
