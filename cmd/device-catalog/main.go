package main

import "github.com/architeacher/device-catalog/internal/runtime"

func main() {
	runtime.New().Run()
}
