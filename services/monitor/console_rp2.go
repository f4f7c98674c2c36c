//go:build rp2040

package monitor

import (
	"io"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// Console configures UART0 at 115200 on the default pins.
func Console() io.Writer {
	if err := uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       uartx.UART_TX_PIN,
		RX:       uartx.UART_RX_PIN,
	}); err != nil {
		println("[monitor] uart configure error:", err.Error())
	}
	return uartx.UART0
}
