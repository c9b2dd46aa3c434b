package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"lightning-worker/go-backend/internal/contracts"
)

type rpcRequest struct {
	JSONRPC    string          `json:"jsonrpc"`
	ID         json.RawMessage `json:"id"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params"`
	APIVersion *int            `json:"api_version,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// rpcResponse carries an already encoded result so that a successful call
// returning null still has a "result" member.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r, http.MethodPost) {
		return
	}
	token := s.extractRPCToken(r)
	if ok, wait := s.rateLimiter.Take(clientKey(r, token), time.Now()); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	req, rpcErr, err := decodeRequest(w, r)
	if errors.Is(err, errBodyTooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if rpcErr == nil {
		rpcErr = checkAPIVersion(req.APIVersion)
	}
	if rpcErr != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}

	key := idempotencyKey(r.Header.Get(rpcIdempotencyHeader), token)
	if key != "" {
		cached, outcome := s.idempotency.begin(r.Context(), key, requestFingerprint(req))
		switch outcome {
		case replayClash:
			writeRPC(w, rpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &rpcError{Code: rpcCodeIdempotencyClash, Message: "idempotency key was used for a different request"},
			})
			return
		case replayPending:
			writeRPC(w, rpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &rpcError{Code: rpcCodeOutcomeUnknown, Message: "request with this idempotency key is still in progress"},
			})
			return
		case replayHit:
			cached.ID = req.ID
			writeRPC(w, cached)
			return
		}
	}

	resp := s.call(r.Context(), req)
	// An unknown outcome is stored as well: the command may still complete,
	// so a retry under the same key must not dispatch it again.
	if key != "" {
		s.idempotency.finish(key, resp)
	}
	writeRPC(w, resp)
}

// decodeRequest parses exactly one JSON-RPC envelope from the body.
func decodeRequest(w http.ResponseWriter, r *http.Request) (rpcRequest, *rpcError, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, nil, errBodyTooLarge
		}
		return rpcRequest{}, &rpcError{Code: rpcCodeParse, Message: "parse error"}, nil
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return req, invalidRequest(), nil
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return req, invalidRequest(), nil
	}
	return req, nil, nil
}

func (s *Server) call(ctx context.Context, req rpcRequest) rpcResponse {
	started := time.Now()
	logger := s.logger.With("request_id", uuid.NewString(), "method", req.Method)
	logger.Debug("rpc request", "rpc_id", string(req.ID))

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	result, rpcErr := s.dispatchRPC(ctx, req.Method, req.Params)
	cancel()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = mapRPCError(contracts.WrapCategorizedError(contracts.CategoryMarshaling, err))
		} else {
			resp.Result = raw
		}
	}
	latency := time.Since(started).Milliseconds()
	if resp.Error != nil {
		logger.Warn("rpc failed", "rpc_code", resp.Error.Code, "latency_ms", latency)
	} else {
		logger.Info("rpc handled", "latency_ms", latency)
	}
	return resp
}

func (s *Server) dispatchRPC(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil
	case "rpc.version":
		return currentVersionInfo(), nil
	case "rpc.capabilities":
		return s.capabilities(), nil
	}
	m, ok := s.methods[method]
	if !ok {
		return nil, &rpcError{Code: rpcCodeMethodNotFound, Message: "method not found"}
	}
	if s.bridge == nil {
		return nil, &rpcError{Code: rpcCodeNoBridge, Message: "session bridge is not initialized"}
	}
	params, err := newParamReader(rawParams, m.maxArgs)
	if err != nil {
		return nil, rpcInvalidParams()
	}
	result, err := m.call(ctx, params)
	if err != nil {
		return nil, mapRPCError(err)
	}
	return result, nil
}

type capabilityList struct {
	Methods     []string `json:"methods"`
	EventStream string   `json:"event_stream"`
}

func (s *Server) capabilities() capabilityList {
	names := make([]string, 0, len(s.methods)+3)
	for name := range s.methods {
		names = append(names, name)
	}
	names = append(names, "health_check", "rpc.version", "rpc.capabilities")
	sort.Strings(names)
	return capabilityList{Methods: names, EventStream: s.eventChan}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func invalidRequest() *rpcError {
	return &rpcError{Code: rpcCodeInvalidRequest, Message: "invalid request"}
}
