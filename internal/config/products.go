package config

// productFilesLocation maps a product to the cookbook directory its cnf
// files are read from during provisioning, relative to the remote
// provisioning directory.
var productFilesLocation = map[string]string{
	"mariadb":  "cookbooks/mariadb/files",
	"mdbe":     "cookbooks/mariadb/files",
	"galera":   "cookbooks/galera/files",
	"mysql":    "cookbooks/mysql/files",
	"maxscale": "cookbooks/mariadb-maxscale/files",
}

// FilesLocation returns where cnf templates of product are placed on the node.
func FilesLocation(product string) (string, bool) {
	loc, ok := productFilesLocation[product]
	return loc, ok
}
