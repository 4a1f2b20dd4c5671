// Command backup-client watches a local directory tree and keeps a
// remote server's per-user mirror of it continuously up to date.
//
// On startup it reads its configuration (see clientconfig), logs in if
// it was not given a token, then runs the reconciliation engine's full
// lifecycle until interrupted: parallel initialization against the
// server mirror, single-threaded steady-state scanning, and automatic
// restart-on-failure bounded by a retry budget.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xatophi/remote-backup-pds-project/clientconfig"
	"github.com/xatophi/remote-backup-pds-project/log"
	"github.com/xatophi/remote-backup-pds-project/pathindex"
	"github.com/xatophi/remote-backup-pds-project/protocolclient"
	"github.com/xatophi/remote-backup-pds-project/reconcile"
	"github.com/xatophi/remote-backup-pds-project/shutdown"
)

var (
	configPath = flag.String("config", "", "path to the client configuration file (default $HOME/.backup/client.yaml)")
	logLevel   = flag.String("log", "info", "log level: debug, info, error")
)

func main() {
	flag.Parse()

	if err := log.SetLevel(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := clientconfig.FromFile(*configPath)
	if err != nil {
		log.Error.Printf("backup-client: %v", err)
		os.Exit(1)
	}

	client := protocolclient.New(protocolclient.Config{
		Address:    cfg.Address,
		Port:       cfg.Port,
		BackupPath: cfg.BackupPath,
	})

	if !client.HasToken() {
		password, err := promptPassword(cfg.Username)
		if err != nil {
			log.Error.Printf("backup-client: %v", err)
			os.Exit(1)
		}
		if err := client.Login(cfg.Username, password); err != nil {
			log.Error.Printf("backup-client: login failed: %v", err)
			os.Exit(1)
		}
	}
	shutdown.Handle(func() {
		if err := client.Logout(); err != nil {
			log.Error.Printf("backup-client: logout: %v", err)
		}
	})

	index := pathindex.New()
	engine := reconcile.New(client, index, cfg.BackupPath)
	supervisor := reconcile.NewSupervisor(engine, time.Duration(cfg.DelayMillis)*time.Millisecond, cfg.RetryBudget)

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	if err := supervisor.Run(stop); err != nil {
		log.Error.Printf("backup-client: %v", err)
		shutdown.Now(1)
	}
	shutdown.Now(0)
}

// promptPassword asks the user for their password on stdin, echoing
// nothing special since the backup protocol has no terminal-hiding
// dependency in the pack; the original client prompted the same way.
func promptPassword(username string) (string, error) {
	fmt.Printf("Hello %s\nIn order to authenticate to server, type your password: ", username)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
