// config_test.go tests config files
package config

import (
	"os"
	"testing"
)

// fileToTest is a relative path to the configuration file to test (ie. psync/cmd/conf.json)
var fileToTest string = "../../cmd/conf.json"

// TestConfig extracts config from a file and checks values loaded
func TestConfig(t *testing.T) {
	//extract configuration
	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	} else {
		// lets check the port
		if conf.Port != "3030" {
			t.Errorf("config port is not the expected %s", conf.Port)
		}
		// the scan window and call timeout
		if conf.ScanWindow != 50 || conf.CallTimeout != 10 {
			t.Errorf("scan window %d or call timeout %d do not match the expected", conf.ScanWindow, conf.CallTimeout)
		}
		// and the ledgers
		if len(conf.Ledgers) != 2 {
			t.Errorf("ledgers do not match the expected %v", conf.Ledgers)
		} else {
			if conf.Ledgers[0].Name != "sepolia" || conf.Ledgers[1].Name != "localdev" {
				t.Errorf("ledgers do not match the expected %v", conf.Ledgers)
			}
			if conf.Ledgers[0].Registry == "" || conf.Ledgers[0].Marketplace == "" || conf.Ledgers[0].Identity == "" {
				t.Errorf("ledger contract addresses missing %v", conf.Ledgers[0])
			}
		}
	}
}

// TestConfigEnvOverride checks OS ENV variables win over file values
func TestConfigEnvOverride(t *testing.T) {
	os.Setenv("PSN_PORT", "4040")
	os.Setenv("PSN_CASGATEWAY", "https://gateway.test/ipfs/")
	defer os.Unsetenv("PSN_PORT")
	defer os.Unsetenv("PSN_CASGATEWAY")

	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	}
	if conf.Port != "4040" {
		t.Errorf("ENV override did not win, port is %s", conf.Port)
	}
	if conf.CasGateway != "https://gateway.test/ipfs/" {
		t.Errorf("ENV override did not win, cas gateway is %s", conf.CasGateway)
	}
}
