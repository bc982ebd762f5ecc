package config

import "flag"

type flags struct {
	config   string
	account  string
	store    string
	web      string
	export   string
	once     bool
	debug    bool
	addOrder bool
}

func parseFlags(args []string) (flags, error) {
	var f flags

	fs := flag.NewFlagSet("chainguardian", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "path to yaml config")
	fs.StringVar(&f.account, "account", "", "account to work with, example: main")
	fs.StringVar(&f.store, "store", "", "path to the encrypted store file")
	fs.StringVar(&f.web, "web", "", "dashboard listen address, example: :8080")
	fs.StringVar(&f.export, "export", "", "write the decrypted store as plain json to this path and exit")
	fs.BoolVar(&f.once, "once", false, "refresh once, print the report and exit")
	fs.BoolVar(&f.debug, "debug", false, "enable development logging")
	fs.BoolVar(&f.addOrder, "add-order", false, "record a new order interactively and exit")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}
