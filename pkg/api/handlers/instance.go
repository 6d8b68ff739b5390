package handlers

import "net/http"

// GetInstanceInfo answers GET / with the public instance description. The
// rate limit table is included when ?rate_limits is passed.
func (h *Handlers) GetInstanceInfo(w http.ResponseWriter, r *http.Request) {
	_, withRateLimits := r.URL.Query()["rate_limits"]
	respond(w, http.StatusOK, h.Cfg.InstanceInfo(withRateLimits))
}
