//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/markkurossi/covm/messenger"
	"github.com/markkurossi/covm/rep3"
)

func cmdRelay(args []string) error {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	listen := fs.String("l", "127.0.0.1:8090", "listen address")
	expiration := fs.Duration("expire", messenger.DefaultExpiration,
		"idle session expiration")
	connect := fs.String("connect", "",
		"create a new session at the relay server and print its ID")
	fs.Parse(args)

	if len(*connect) > 0 {
		client, err := messenger.Connect(*connect, log)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(),
			30*time.Second)
		defer cancel()

		id, err := client.NewSession(ctx, rep3.NumParties)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}

	listener, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	srv := messenger.NewServer(*expiration, log)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		log.Info().Msg("stopping")
		srv.Stop()
	}()

	return srv.Serve(listener)
}
