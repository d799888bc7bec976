package main

import (
	"price-anomaly-repair/internal/cli"
)

func main() {
	cli.Execute()
}
