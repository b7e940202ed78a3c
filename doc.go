/*
Package wsapp is a web services application server. It serves a set of pluggable
services, discovered once at startup in a services home directory, behind a single
HTTP dispatch table. It runs as a daemon under Linux systemd.

Each sub-directory of the services home holding a MANIFEST file and a service
entry file (service.go for services compiled into the server binary, service.so
for Go plugins) is a service. The directory name is the service name, and its
routes are served below <URLBase>/<name>/:

   services/
      hello/
         MANIFEST
         service.go

The MANIFEST is a JSON file (allowing "//" comments) naming the service label and
the route table the service code exports:

   {
      "Service" : {
          "Label" : "Hello service",
          "Mapping" : "handlers"
      },
      "Settings" : { ... }
   }

Service code registers itself under its directory name with service.Register.

Requests are dispatched to the first route whose pattern matches the whole URL
path. Built in top level routes come first, then service routes in service name
order, and anything else is answered 404.

Running the server from a configuration file:

   {
      "Server" : {
          "Port" : 8888,
          "URLBase" : "/api/",
          "ServicesHome" : "services"
      },
      "Log" : {
          "AccessLog" : "/var/log/wsapp/access.log"
      },
      "Settings" : { ... }
   }

The process is controlled by OS signals and a UNIX control socket.
*/
package wsapp
