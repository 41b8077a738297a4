package apimodels

import "github.com/qubi-project/qubi/pkg/version"

type IsAliveResponse struct {
	Status string `json:"Status"`
}

// IsReady returns true if the response indicates the server is up.
func (r *IsAliveResponse) IsReady() bool {
	return r.Status == "OK"
}

type GetVersionResponse struct {
	BuildVersionInfo *version.BuildVersionInfo `json:"build_version_info"`
}
