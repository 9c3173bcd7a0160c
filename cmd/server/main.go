package main

import (
	_ "time/tzdata"

	"hrpay/internal/app/server"
)

func main() {
	server.Run()
}
