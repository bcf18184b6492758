// Package fortiwatch polls a FortiGate appliance for security-relevant
// system log events and keeps the most recent ones in a bounded,
// deduplicated window.
//
// Quick start:
//
//	c, err := fortiwatch.New(fortiwatch.Config{
//	    Host:         "fw.example.com",
//	    Port:         "443",
//	    Protocol:     "https",
//	    Username:     "monitor",
//	    Password:     os.Getenv("FW_PASSWORD"),
//	    PollInterval: 30,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c.Start(ctx)
//	defer c.Stop()
//
//	for _, r := range c.Records() {
//	    fmt.Println(r.Timestamp, r.Level, r.Message)
//	}
//
// Leaving Host empty, or setting Mock, serves a fixed set of synthetic events
// instead of contacting an appliance. A Client is safe for concurrent use and
// must not be shared between appliance configurations.
package fortiwatch
