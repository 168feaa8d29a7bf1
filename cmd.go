package main

import "time"

type Command struct {
	Config  string `help:"config file path, JSON or YAML" short:"c" type:"path"`
	EnvFile string `help:"environment file read before the environment is applied" default:".env"`
	DryRun  bool   `help:"don't write to the database, just print the output"`

	Version struct{} `cmd:"" help:"Print version information."`
	Serve   struct {
		Listen string `help:"listen address, overrides the config" short:"l"`
	} `cmd:"" help:"Run the HTTP API, the CI run watcher and scheduled publishing."`
	Migrate   struct{} `cmd:"" help:"Create or update the database schema."`
	Reconcile struct {
		Repo    string `arg:"" help:"repository name"`
		Output  string `help:"write the discovery document to a file instead of stdout" short:"o" type:"path"`
		Publish bool   `help:"upload the discovery document to object storage"`
	} `cmd:"" help:"Join a repository catalog with its upstream feed."`
	Submit struct {
		Repo   string `arg:"" help:"repository name"`
		Name   string `arg:"" help:"package name"`
		Ver    string `help:"package version" required:""`
		Rel    string `help:"package release" required:""`
		Arch   string `help:"package architecture" required:""`
		ID     string `help:"CI build id" required:""`
		Dirs   string `help:"package directory in the source tree"`
		Commit string `help:"source commit"`
		Failed bool   `help:"record a failed build"`
		Watch  bool   `help:"watch the CI run and submit its outcome when it completes"`
	} `cmd:"" help:"Record a build report."`
	Token struct {
		Keygen struct{} `cmd:"" help:"Print a new random signing key."`
		Sign   struct {
			Scope   []string      `help:"token scopes" default:"admin"`
			Subject string        `help:"token subject" default:"pkgledger"`
			TTL     time.Duration `help:"token lifetime, zero never expires" name:"ttl"`
		} `cmd:"" help:"Mint a bearer token signed with the configured key."`
	} `cmd:"" help:"Manage API bearer tokens."`
}
