package main

import (
	"github.com/soniclabs/native-recorder/internal/app"
)

func main() {
	app.Main()
}
