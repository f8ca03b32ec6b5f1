package generate

import (
	"path/filepath"
	"strings"

	"applique-backend/internal/shared/util"
)

const maxSlugLen = 40

// outputName builds <slug>_<fingerprint8>_<request8>.pdf. Identical requests
// share the fingerprint part; the request part keeps every output distinct.
func outputName(company string, slots []slot, fingerprint, requestID string) string {
	return slugFor(company, slots) + "_" + short(fingerprint) + "_" + short(requestID) + ".pdf"
}

func slugFor(company string, slots []slot) string {
	if s := util.Slug(company, maxSlugLen); s != "" {
		return s
	}
	if len(slots) != 1 {
		return "application"
	}
	name := slots[0].name
	if slots[0].kind == kindTemplate {
		name = slots[0].ref.Name
	}
	if s := util.Slug(strings.TrimSuffix(name, filepath.Ext(name)), maxSlugLen); s != "" {
		return s
	}
	return "document"
}

func short(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
