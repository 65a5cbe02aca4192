// Package defaults embeds the stock indicator catalog shipped with the
// daemons. Deployments point SINAG_*_CATALOG_DIR at their own catalog;
// the embedded files keep a fresh checkout runnable.
package defaults

import "embed"

//go:embed *.yaml
var FS embed.FS
