//go:build tinygo && baremetal

package main

import (
	"bitrt/app"
	"bitrt/hal"
)

func main() {
	app.Run(hal.New())
}
