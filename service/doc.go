/*
Package service is the API imported by pluggable services.

A service lives in its own directory under the server services home. The directory
holds a MANIFEST file and the service code (service.go, or service.so when built as a
Go plugin). The service package registers itself from init():

	func init() {
		service.Register("hello", service.RouteTables{
			"handlers": {
				{Pattern: "/say", Handler: &sayHello{}},
			},
		})
	}

Route patterns are regular expressions relative to the service namespace, so the
route "/say" of the service "hello" is served as "/api/hello/say".
*/
package service
