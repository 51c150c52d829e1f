package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/soniclabs/native-recorder/internal/config"
)

func initConfig() *config.Config {
	return (&config.Config{App: app}).GetDefaults()
}

func loadConfig() {
	newCfg := initConfig()
	newCfg.Load(app.Name, flags.config)
	*cfg = *newCfg

	log.Debugf("effective configuration: %s", pretty.Sprint(redacted(cfg)))
}

// redacted strips the token credentials before the config is logged.
func redacted(cfg *config.Config) config.Config {
	c := *cfg
	c.Token.AppId = "<redacted>"
	c.Token.Certificate = "<redacted>"
	c.Token.Static = "<redacted>"
	return c
}

func dumpConfig() {
	var v interface{}
	y, _ := yaml.Marshal(cfg)

	if err := yaml.Unmarshal(y, &v); err != nil {
		log.Fatalf("failed to unmarshal config: %s", err)
	}

	if flags.dump != "all" {
		for _, a := range strings.Split(flags.dump, ".") {
			var i *int
			if n, err := strconv.Atoi(a); err == nil {
				i = &n
			}
			switch v.(type) {
			case []interface{}:
				if i == nil || len(v.([]interface{})) < *i+1 {
					v = nil
					goto _break
				}
				v = v.([]interface{})[*i]
			case map[string]interface{}:
				var ok bool
				if v, ok = v.(map[string]interface{})[a]; !ok {
					v = nil
					goto _break
				}
			default:
				v = nil
				goto _break
			}
		}
	}
_break:
	if v != nil {
		b, _ := yaml.Marshal(v)
		fmt.Print(string(b))
		os.Exit(0)
	}
	os.Exit(1)
}
