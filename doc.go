// Package tmolockd exposes the Go APIs behind the customer-record lock
// service used to coordinate who is testing a Salesforce record at any
// moment. The server keeps at most one lock per record id, expires locks
// lazily on read, and always lets the last acquire win; the client package
// layers retries and the takeover confirmation flow on top.
//
// # Running a server
//
//	cfg := tmolockd.Config{
//	    Store:  "bolt:///var/lib/tmolockd/locks.db",
//	    Listen: ":9346",
//	}
//	srv, err := tmolockd.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go func() {
//	    if err := srv.Start(); err != nil {
//	        log.Fatalf("tmolockd: %v", err)
//	    }
//	}()
//	defer srv.Close()
//
// StartServer bundles the same steps and blocks until the listener is ready,
// which is what the CLI and the tests use.
package tmolockd
