// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mgmtapi implements the http management API of the controller.
package mgmtapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/scionproto/sdnctrl/controller"
	"github.com/scionproto/sdnctrl/pkg/ofp"
	"github.com/scionproto/sdnctrl/private/topology"
)

// Controller is the part of the controller the API exposes.
type Controller interface {
	Snapshot() controller.Snapshot
	Paths(src, dst ofp.DatapathID) ([]topology.Path, topology.Path)
	PolicyName() string
	HandleEvent(ctx context.Context, ev ofp.Event) error
}

// Server implements the http management API of the controller.
type Server struct {
	Controller        Controller
	DiscoveryInterval time.Duration
}

// Handler creates the API handler without base URL.
func Handler(s *Server) http.Handler {
	return HandlerFromMuxWithBaseURL(s, chi.NewRouter(), "")
}

// HandlerFromMuxWithBaseURL registers the API routes on r under baseURL.
func HandlerFromMuxWithBaseURL(s *Server, r chi.Router, baseURL string) http.Handler {
	r.Get(baseURL+"/info", s.GetInfo)
	r.Get(baseURL+"/topology", s.GetTopology)
	r.Get(baseURL+"/hosts", s.GetHosts)
	r.Get(baseURL+"/paths", s.GetPaths)
	r.Put(baseURL+"/links/{a}/{b}", s.SetLinkState)
	return r
}

// GetInfo returns the active policy and the size of the network.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	snap := s.Controller.Snapshot()
	writeJSON(w, http.StatusOK, InfoResponse{
		Policy:            s.Controller.PolicyName(),
		DiscoveryInterval: s.DiscoveryInterval.String(),
		Switches:          len(snap.Switches),
		Links:             len(snap.Links),
		Hosts:             len(snap.Hosts),
	})
}

// GetTopology returns the known switches and links.
func (s *Server) GetTopology(w http.ResponseWriter, r *http.Request) {
	snap := s.Controller.Snapshot()
	rep := TopologyResponse{
		Switches: lo.Map(snap.Switches, func(sw controller.Switch, _ int) Switch {
			return Switch{
				ID:        sw.ID.String(),
				Ports:     lo.Map(sw.Ports, func(p ofp.PortNo, _ int) uint32 { return uint32(p) }),
				Connected: sw.Connected,
				Discovery: sw.Discovery.String(),
			}
		}),
		Links: lo.Map(snap.Links, func(l topology.Link, _ int) Link {
			return Link{
				A:           l.A.String(),
				PortA:       uint32(l.PortA),
				B:           l.B.String(),
				PortB:       uint32(l.PortB),
				Cost:        l.Cost,
				Utilization: l.Utilization,
			}
		}),
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetHosts returns the learned hosts.
func (s *Server) GetHosts(w http.ResponseWriter, r *http.Request) {
	hosts := s.Controller.Snapshot().Hosts
	rep := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		rep = append(rep, Host{
			Addr:   h.Addr.String(),
			Switch: h.Switch.String(),
			Port:   uint32(h.Port),
		})
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetPaths returns all shortest paths between the src and dst switches and
// the path the active policy selects.
func (s *Server) GetPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src, err := ofp.ParseDatapathID(q.Get("src"))
	if err != nil {
		badRequest(w, "malformed src", err)
		return
	}
	dst, err := ofp.ParseDatapathID(q.Get("dst"))
	if err != nil {
		badRequest(w, "malformed dst", err)
		return
	}
	all, selected := s.Controller.Paths(src, dst)
	writeJSON(w, http.StatusOK, PathsResponse{
		Src:      src.String(),
		Dst:      dst.String(),
		Policy:   s.Controller.PolicyName(),
		Paths:    lo.Map(all, func(p topology.Path, _ int) []string { return pathStrings(p) }),
		Selected: pathStrings(selected),
	})
}

// SetLinkState marks the link between the switches as down or up. The
// topology is updated and the installed flows are flushed as if the switches
// had reported the change.
func (s *Server) SetLinkState(w http.ResponseWriter, r *http.Request) {
	a, err := ofp.ParseDatapathID(chi.URLParam(r, "a"))
	if err != nil {
		badRequest(w, "malformed switch", err)
		return
	}
	b, err := ofp.ParseDatapathID(chi.URLParam(r, "b"))
	if err != nil {
		badRequest(w, "malformed switch", err)
		return
	}
	var req LinkStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "malformed request body", err)
		return
	}
	var ev ofp.Event
	switch req.State {
	case LinkStateDown:
		ev = ofp.LinkDown{A: a, B: b}
	case LinkStateUp:
		if req.PortA == nil || req.PortB == nil {
			ErrorResponse(w, Problem{
				Detail: StringRef("port_a and port_b are required"),
				Status: http.StatusBadRequest,
				Title:  "missing ports",
				Type:   StringRef(BadRequest),
			})
			return
		}
		ev = ofp.LinkUp{A: a, PortA: ofp.PortNo(*req.PortA), B: b, PortB: ofp.PortNo(*req.PortB)}
	default:
		ErrorResponse(w, Problem{
			Detail: StringRef("state must be \"up\" or \"down\""),
			Status: http.StatusBadRequest,
			Title:  "unknown link state",
			Type:   StringRef(BadRequest),
		})
		return
	}
	if err := s.Controller.HandleEvent(r.Context(), ev); err != nil {
		badRequest(w, "link state change rejected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathStrings(p topology.Path) []string {
	return lo.Map(p, func(id ofp.DatapathID, _ int) string { return id.String() })
}

func badRequest(w http.ResponseWriter, title string, err error) {
	ErrorResponse(w, Problem{
		Detail: StringRef(err.Error()),
		Status: http.StatusBadRequest,
		Title:  title,
		Type:   StringRef(BadRequest),
	})
}

func writeJSON(w http.ResponseWriter, status int, rep any) {
	raw, err := json.MarshalIndent(rep, "", "    ")
	if err != nil {
		ErrorResponse(w, Problem{
			Detail: StringRef(err.Error()),
			Status: http.StatusInternalServerError,
			Title:  "unable to marshal response",
			Type:   StringRef(InternalError),
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(raw, '\n'))
}

// ErrorResponse writes a detailed error response.
func ErrorResponse(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	// no point in catching error here, there is nothing we can do about it anymore.
	_ = enc.Encode(p)
}
