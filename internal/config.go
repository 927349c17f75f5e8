package internal

import (
	"encoding/json"
	"log"
	"os"

	"github.com/haatos/conveyor/internal/util"
)

var Config *Configuration

type Configuration struct {
	QueueSize     int64 `json:"queue_size"`
	GatePageLimit int64 `json:"gate_page_limit"`
}

func InitializeConfiguration() {
	Config = &Configuration{
		QueueSize:     3,
		GatePageLimit: 50,
	}

	configFileExists, _ := util.PathExists("config.json")
	if !configFileExists {
		b, err := json.MarshalIndent(Config, "", "    ")
		if err != nil {
			log.Fatal(err)
		}
		configFile, err := os.Create("config.json")
		if err != nil {
			log.Fatal(err)
		}
		if _, err := configFile.Write(b); err != nil {
			log.Fatal(err)
		}
	} else {
		configBytes, err := os.ReadFile("config.json")
		if err != nil {
			log.Fatal(err)
		}
		if err := json.Unmarshal(configBytes, &Config); err != nil {
			log.Fatal(err)
		}
	}
}
