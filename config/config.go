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
Package config contains the global LinkedRecords configuration.

The configuration is a flat map which is read from a JSON file. Missing
options are filled in from DefaultConfig.
*/
package config

import (
	"fmt"
	"strconv"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
)

// Global variables
// ================

/*
ProductVersion is the current version of LinkedRecords
*/
const ProductVersion = "0.9.0"

/*
DefaultConfigFile is the default config file which will be used to configure LinkedRecords
*/
var DefaultConfigFile = "linkedrecords.config.json"

/*
Known configuration options for LinkedRecords
*/
const (
	DatabaseDriver         = "DatabaseDriver"
	DatabaseDSN            = "DatabaseDSN"
	HTTPHost               = "HTTPHost"
	HTTPPort               = "HTTPPort"
	LockFile               = "LockFile"
	UserHeader             = "UserHeader"
	LogLevel               = "LogLevel"
	AuthCacheMaxSize       = "AuthCacheMaxSize"
	AuthCacheMaxAgeSeconds = "AuthCacheMaxAgeSeconds"
	RedisAddress           = "RedisAddress"
	RedisChannel           = "RedisChannel"
	NotifierWorkerCount    = "NotifierWorkerCount"
	BlobStorage            = "BlobStorage"
	S3Bucket               = "S3Bucket"
	S3Region               = "S3Region"
	S3Endpoint             = "S3Endpoint"
	S3UsePathStyle         = "S3UsePathStyle"
	EnableMetrics          = "EnableMetrics"
	EnableTestReset        = "EnableTestReset"
	EnableECAL             = "EnableECAL"
	ECALScriptFolder       = "ECALScriptFolder"
	ECALEntryScript        = "ECALEntryScript"
	ECALLogLevel           = "ECALLogLevel"
	ECALLogFile            = "ECALLogFile"
	ECALWorkerCount        = "ECALWorkerCount"
)

/*
DefaultConfig is the defaut configuration
*/
var DefaultConfig = map[string]interface{}{
	DatabaseDriver:         "sqlite",
	DatabaseDSN:            "linkedrecords.db",
	HTTPHost:               "localhost",
	HTTPPort:               "6543",
	LockFile:               "linkedrecords.lck",
	UserHeader:             "X-LinkedRecords-User",
	LogLevel:               "Info",
	AuthCacheMaxSize:       10000,
	AuthCacheMaxAgeSeconds: 0,
	RedisAddress:           "",
	RedisChannel:           "linkedrecords:auth-cache",
	NotifierWorkerCount:    4,
	BlobStorage:            "memory",
	S3Bucket:               "linkedrecords",
	S3Region:               "us-east-1",
	S3Endpoint:             "",
	S3UsePathStyle:         false,
	EnableMetrics:          true,
	EnableTestReset:        false,
	EnableECAL:             false,
	ECALScriptFolder:       "scripts",
	ECALEntryScript:        "main.ecal",
	ECALLogLevel:           "info",
	ECALLogFile:            "",
	ECALWorkerCount:        10,
}

/*
Config is the actual config which is used
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not exist it is
created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

// Helper functions
// ================

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}
