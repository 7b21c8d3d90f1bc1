//go:build !ORT

package embedder

import "github.com/knights-analytics/hugot"

func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
