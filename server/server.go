/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package server contains the code for the LinkedRecords server.
*/
package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/httputil"
	"devt.de/krotik/common/lockutil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/linkedrecords/api"
	v1 "devt.de/krotik/linkedrecords/api/v1"
	"devt.de/krotik/linkedrecords/attribute"
	"devt.de/krotik/linkedrecords/auth"
	"devt.de/krotik/linkedrecords/config"
	"devt.de/krotik/linkedrecords/ecal"
	"devt.de/krotik/linkedrecords/graph"
	"devt.de/krotik/linkedrecords/graph/graphstorage"
	"devt.de/krotik/linkedrecords/query"
	"devt.de/krotik/linkedrecords/subscription"
)

/*
Using custom consolelogger type so we can test log.Fatal calls with unit tests. Overwrite
these if the server should not call os.Exit on a fatal error.
*/
type consolelogger func(v ...interface{})

var fatal = consolelogger(log.Fatal)
var print = consolelogger(log.Print)

/*
Base path for all file (used by unit tests)
*/
var basepath = ""

/*
StartServer runs the LinkedRecords server. The server uses config.Config for all its configuration
parameters.
*/
func StartServer() {
	StartServerWithSingleOp(nil)
}

/*
StartServerWithSingleOp runs the LinkedRecords server. If the singleOperation function is
not nil then the server executes the function and exists if the function returns true.
All components of the REST API (api.GM, api.AE, api.Resolver, ...) are available
to the single operation.
*/
func StartServerWithSingleOp(singleOperation func(*graph.Manager) bool) {
	var err error
	var gs graphstorage.Storage

	print(fmt.Sprintf("LinkedRecords %v", config.ProductVersion))

	// Ensure we have a configuration - use the default configuration if nothing was set

	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	// Setup logging

	logutil.ClearLogSinks()
	logutil.GetLogger("linkedrecords").AddLogSink(logutil.StringToLoglevel(config.Str(config.LogLevel)),
		logutil.SimpleFormatter(), os.Stderr)

	// Create fact storage

	driver := config.Str(config.DatabaseDriver)
	dsn := config.Str(config.DatabaseDSN)

	if driver == "sqlite" && dsn != ":memory:" {
		dsn = filepath.Join(basepath, dsn)
		print("Opening fact storage in ", dsn)
	} else {
		print("Opening fact storage (", driver, ")")
	}

	gs, err = graphstorage.NewGraphStorage("linkedrecords", driver, dsn)
	if err != nil {
		fatal(err)
		return
	}

	// Create GraphManager

	print("Creating GraphManager instance")

	gm := graph.NewGraphManager(gs)
	api.GM = gm

	defer func() {

		print("Closing fact storage")

		if err := gs.Close(); err != nil {
			fatal(err)
			return
		}

		os.RemoveAll(filepath.Join(basepath, config.Str(config.LockFile)))
	}()

	// Create authorization engine and its cache

	var broadcaster auth.Broadcaster

	if addr := config.Str(config.RedisAddress); addr != "" {
		print("Using redis for auth cache invalidation: ", addr)
		broadcaster = auth.NewRedisBroadcaster(addr, config.Str(config.RedisChannel))
	} else {
		broadcaster = auth.NewLocalBroadcaster()
	}

	defer broadcaster.Close()

	cache := auth.NewCache(uint64(config.Int(config.AuthCacheMaxSize)),
		config.Int(config.AuthCacheMaxAgeSeconds), broadcaster)

	gm.SetGraphRule(&auth.CacheInvalidationRule{Cache: cache})

	api.AE = auth.NewEngine(gm, cache)

	// Create attribute registry

	var blobs attribute.BlobStore

	if config.Str(config.BlobStorage) == "s3" {
		print("Using S3 blob storage: ", config.Str(config.S3Bucket))

		blobs, err = attribute.NewS3BlobStore(context.Background(), attribute.S3Config{
			Bucket:       config.Str(config.S3Bucket),
			Region:       config.Str(config.S3Region),
			Endpoint:     config.Str(config.S3Endpoint),
			UsePathStyle: config.Bool(config.S3UsePathStyle),
		})

		if err != nil {
			fatal("Failed to create S3 blob storage:", err)
			return
		}

	} else {
		blobs = attribute.NewMemoryBlobStore()
	}

	if api.Attributes, err = attribute.NewDefaultRegistry(gs, blobs); err != nil {
		fatal("Failed to create attribute registry:", err)
		return
	}

	// Create query resolver and subscription notifier

	api.Resolver = query.NewResolver(gm, api.AE, api.Attributes)
	api.Notifier = subscription.NewNotifier(int(config.Int(config.NotifierWorkerCount)))

	gm.SetGraphRule(api.Notifier)

	defer api.Notifier.Close()

	// Start ECAL scripting interpreter

	if config.Bool(config.EnableECAL) {
		scriptFolder := filepath.Join(basepath, config.Str(config.ECALScriptFolder))

		print("Loading ECAL scripts in ", scriptFolder)

		ensurePath(scriptFolder)

		if err := ecal.NewScriptingInterpreter(scriptFolder, gm, api.Resolver).Run(); err != nil {
			fatal("Failed to start ECAL scripting interpreter:", err)
			return
		}
	}

	// Handle single operation - these are operations which work on the GraphManager
	// and then exit.

	if singleOperation != nil && singleOperation(gm) {
		return
	}

	// Register REST endpoints

	api.APIHost = config.Str(config.HTTPHost) + ":" + config.Str(config.HTTPPort)

	api.RegisterRestEndpoints(api.GeneralEndpointMap)

	if config.Bool(config.EnableMetrics) {
		api.RegisterRestEndpoints(api.MetricsEndpointMap)
	}

	api.RegisterRestEndpoints(v1.V1EndpointMap)

	// Start HTTP server and enable REST API

	hs := &httputil.HTTPServer{}

	var wg sync.WaitGroup
	wg.Add(1)

	port := config.Str(config.HTTPPort)

	print("Starting server on: ", api.APIHost)

	go hs.RunHTTPServer(":"+port, &wg)

	// Wait until the server has started

	wg.Wait()

	// HTTP Server has started

	if hs.LastError != nil {
		fatal(hs.LastError)
		return
	}

	// Create a lockfile so the server can be shut down

	lf := lockutil.NewLockFile(filepath.Join(basepath, config.Str(config.LockFile)), time.Duration(2)*time.Second)

	lf.Start()

	go func() {

		// Check if the lockfile watcher is running and
		// call shutdown once it has finished

		for lf.WatcherRunning() {
			time.Sleep(time.Duration(1) * time.Second)
		}

		print("Lockfile was modified")

		hs.Shutdown()
	}()

	// Add to the wait group so we can wait for the shutdown

	wg.Add(1)

	print("Waiting for shutdown")
	wg.Wait()

	print("Shutting down")
}

/*
ensurePath ensures that a given relative path exists.
*/
func ensurePath(path string) {
	if res, _ := fileutil.PathExists(path); !res {
		if err := os.Mkdir(path, 0770); err != nil {
			fatal("Could not create directory:", err.Error())
			return
		}
	}
}
