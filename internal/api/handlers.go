package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/shizukutanaka/Kifuda/internal/funding"
	"github.com/shizukutanaka/Kifuda/internal/registry"
	"github.com/shizukutanaka/Kifuda/internal/token"
)

// statusFor maps core errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnauthorized),
		errors.Is(err, token.ErrUnauthorized),
		errors.Is(err, token.ErrNotMinter),
		errors.Is(err, funding.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrNotWhitelisted),
		errors.Is(err, funding.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyWhitelisted),
		errors.Is(err, funding.ErrMemberExists):
		return http.StatusConflict
	case errors.Is(err, registry.ErrBalanceAboveThreshold),
		errors.Is(err, token.ErrTransferNotAllowed),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, funding.ErrNotEligible),
		errors.Is(err, funding.ErrSupplyCapExceeded),
		errors.Is(err, funding.ErrInsufficientSeed),
		errors.Is(err, funding.ErrMemberDisabled):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseAmount(raw string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathAddress extracts and validates the {address} path variable.
func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, ok := parseAddress(mux.Vars(r)["address"])
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid address")
	}
	return addr, ok
}

// System endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"token": map[string]interface{}{
			"name":         s.ledger.Name(),
			"symbol":       s.ledger.Symbol(),
			"total_supply": s.ledger.TotalSupply().String(),
		},
		"whitelist": map[string]interface{}{
			"length":    s.reg.WLLength(),
			"threshold": s.reg.WLThresholdBalance().String(),
		},
		"funding": map[string]interface{}{
			"members":         s.panel.MemberCount(),
			"total_raised":    s.panel.TotalRaised().String(),
			"seed_balance":    s.panel.SeedBalance().String(),
			"seed_max_supply": s.panel.SeedMaxSupply().String(),
		},
	})
}

// Token endpoints

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"name":         s.ledger.Name(),
		"symbol":       s.ledger.Symbol(),
		"decimals":     s.ledger.DecimalCount(),
		"total_supply": s.ledger.TotalSupply().String(),
		"account":      s.ledger.Account().Hex(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"balance": s.ledger.BalanceOf(addr).String(),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, ok1 := parseAddress(r.URL.Query().Get("owner"))
	spender, ok2 := parseAddress(r.URL.Query().Get("spender"))
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "owner and spender query parameters required")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{
		"allowance": s.ledger.Allowance(owner, spender).String(),
	})
}

type transferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	to, ok1 := parseAddress(req.To)
	amount, ok2 := parseAmount(req.Amount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid to or amount")
		return
	}
	if err := s.ledger.Transfer(s.caller(r), to, amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	from, ok1 := parseAddress(req.From)
	to, ok2 := parseAddress(req.To)
	amount, ok3 := parseAmount(req.Amount)
	if !ok1 || !ok2 || !ok3 {
		s.sendError(w, http.StatusBadRequest, "invalid from, to or amount")
		return
	}
	if err := s.ledger.TransferFrom(s.caller(r), from, to, amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	spender, ok1 := parseAddress(req.Spender)
	amount, ok2 := parseAmount(req.Amount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid spender or amount")
		return
	}
	if err := s.ledger.Approve(s.caller(r), spender, amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	to, ok1 := parseAddress(req.To)
	amount, ok2 := parseAmount(req.Amount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid to or amount")
		return
	}
	if err := s.ledger.Mint(s.caller(r), to, amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}
	from, ok1 := parseAddress(req.From)
	amount, ok2 := parseAmount(req.Amount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid from or amount")
		return
	}
	if err := s.ledger.Burn(s.caller(r), from, amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

// Whitelist endpoints

func (s *Server) handleWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"address":     addr.Hex(),
		"whitelisted": s.reg.IsWhitelisted(addr),
		"max_amount":  s.reg.MaxWLAmount(addr).String(),
	})
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		MaxAmount string `json:"max_amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	addr, ok1 := parseAddress(req.Address)
	maxAmount, ok2 := parseAmount(req.MaxAmount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid address or max_amount")
		return
	}
	if err := s.reg.AddToWhitelist(s.caller(r), addr, maxAmount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	if err := s.reg.RemoveFromWhitelist(s.caller(r), addr); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold string `json:"threshold"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	threshold, ok := parseAmount(req.Threshold)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	if err := s.reg.SetNewThreshold(s.caller(r), threshold); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleChangeMaxAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		MaxAmount string `json:"max_amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	addr, ok1 := parseAddress(req.Address)
	maxAmount, ok2 := parseAmount(req.MaxAmount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid address or max_amount")
		return
	}
	if err := s.reg.ChangeMaxWLAmount(s.caller(r), addr, maxAmount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

// Role and registry endpoints

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]bool{
		"owner":            s.reg.IsOwner(addr),
		"wl_manager":       s.reg.IsWLManager(addr),
		"wl_operator":      s.reg.IsWLOperator(addr),
		"funding_manager":  s.reg.IsFundingManager(addr),
		"funding_operator": s.reg.IsFundingOperator(addr),
	})
}

type roleRequest struct {
	Account string `json:"account"`
	Role    string `json:"role"`
}

func (s *Server) handleRoleGrant(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, true)
}

func (s *Server) handleRoleRevoke(w http.ResponseWriter, r *http.Request) {
	s.handleRoleChange(w, r, false)
}

func (s *Server) handleRoleChange(w http.ResponseWriter, r *http.Request, grant bool) {
	var req roleRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid account")
		return
	}
	caller := s.caller(r)

	var err error
	switch req.Role {
	case registry.RoleWLManager:
		if grant {
			err = s.reg.AddWLManagers(caller, account)
		} else {
			err = s.reg.RemoveWLManagers(caller, account)
		}
	case registry.RoleWLOperator:
		if grant {
			err = s.reg.AddWLOperators(caller, account)
		} else {
			err = s.reg.RemoveWLOperators(caller, account)
		}
	case registry.RoleFundingManager:
		if grant {
			err = s.reg.AddFundingManagers(caller, account)
		} else {
			err = s.reg.RemoveFundingManagers(caller, account)
		}
	case registry.RoleFundingOperator:
		if grant {
			err = s.reg.AddFundingOperators(caller, account)
		} else {
			err = s.reg.RemoveFundingOperators(caller, account)
		}
	default:
		s.sendError(w, http.StatusBadRequest, "unknown role")
		return
	}
	if err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetMinter(w http.ResponseWriter, r *http.Request) {
	s.handlePointerChange(w, r, s.reg.SetMinterAddress)
}

func (s *Server) handleSetOwnerWallet(w http.ResponseWriter, r *http.Request) {
	s.handlePointerChange(w, r, s.reg.SetOwnerWallet)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	s.handlePointerChange(w, r, s.reg.Ownership().TransferOwnership)
}

func (s *Server) handlePointerChange(w http.ResponseWriter, r *http.Request, op func(common.Address, common.Address) error) {
	var req struct {
		Address string `json:"address"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	addr, ok := parseAddress(req.Address)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid address")
		return
	}
	if err := op(s.caller(r), addr); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

// Funding endpoints

func (s *Server) handleFundingInfo(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"doc_url":              s.panel.DocURL(),
		"doc_hash":             s.panel.DocHash(),
		"exchange_rate_seed":   s.panel.ExchangeRateSeed().String(),
		"exchange_rate_on_top": s.panel.ExchangeRateOnTop().String(),
		"exch_rate_decimals":   s.panel.ExchRateDecimals(),
		"seed_max_supply":      s.panel.SeedMaxSupply().String(),
		"total_raised":         s.panel.TotalRaised().String(),
		"seed_balance":         s.panel.SeedBalance().String(),
		"deploy_block":         s.panel.DeployBlock(),
	})
}

func (s *Server) handleMemberList(w http.ResponseWriter, r *http.Request) {
	count := s.panel.MemberCount()
	members := make([]string, 0, count)
	for i := 0; i < count; i++ {
		addr, err := s.panel.MemberAt(i)
		if err != nil {
			break
		}
		members = append(members, addr.Hex())
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"count":   count,
		"members": members,
	})
}

func (s *Server) handleMemberGet(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	m, err := s.panel.GetMember(addr)
	if err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"address": addr.Hex(),
		"enabled": m.Enabled,
		"url":     m.URL,
		"hash":    m.Hash,
	})
}

func (s *Server) handleMemberAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Member string `json:"member"`
		URL    string `json:"url"`
		Hash   string `json:"hash"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	member, ok := parseAddress(req.Member)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid member")
		return
	}
	if err := s.panel.AddMemberToSet(s.caller(r), member, req.URL, req.Hash); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	if err := s.panel.DeleteMemberFromSet(s.caller(r), addr); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleMemberEnable(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	if err := s.panel.EnableMember(s.caller(r), addr); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleMemberDisable(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	caller := s.caller(r)
	var err error
	if caller == addr {
		err = s.panel.DisableMemberByMember(caller)
	} else {
		err = s.panel.DisableMemberByStaff(caller, addr)
	}
	if err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

// handleMemberProfile lets an active member update its own document URL and
// hash. Fields left absent are unchanged.
func (s *Server) handleMemberProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL  *string `json:"url,omitempty"`
		Hash *string `json:"hash,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller := s.caller(r)

	if req.URL != nil {
		if err := s.panel.ChangeMemberURLByMember(caller, *req.URL); err != nil {
			s.sendError(w, statusFor(err), err.Error())
			return
		}
	}
	if req.Hash != nil {
		if err := s.panel.ChangeMemberHashByMember(caller, *req.Hash); err != nil {
			s.sendError(w, statusFor(err), err.Error())
			return
		}
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.panel.HolderSendSeeds(s.caller(r), amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Member string `json:"member"`
		Amount string `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	member, ok1 := parseAddress(req.Member)
	amount, ok2 := parseAmount(req.Amount)
	if !ok1 || !ok2 {
		s.sendError(w, http.StatusBadRequest, "invalid member or amount")
		return
	}
	if err := s.panel.UnlockFunds(s.caller(r), member, amount); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetMaxSupply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxSupply string `json:"max_supply"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	maxSupply, ok := parseAmount(req.MaxSupply)
	if !ok {
		s.sendError(w, http.StatusBadRequest, "invalid max_supply")
		return
	}
	if err := s.panel.SetNewSeedMaxSupply(s.caller(r), maxSupply); err != nil {
		s.sendError(w, statusFor(err), err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetRates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed  string `json:"seed,omitempty"`
		OnTop string `json:"on_top,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller := s.caller(r)

	if req.Seed != "" {
		rate, ok := parseAmount(req.Seed)
		if !ok {
			s.sendError(w, http.StatusBadRequest, "invalid seed rate")
			return
		}
		if err := s.panel.SetExchangeRateSeed(caller, rate); err != nil {
			s.sendError(w, statusFor(err), err.Error())
			return
		}
	}
	if req.OnTop != "" {
		rate, ok := parseAmount(req.OnTop)
		if !ok {
			s.sendError(w, http.StatusBadRequest, "invalid on_top rate")
			return
		}
		if err := s.panel.SetExchangeRateOnTop(caller, rate); err != nil {
			s.sendError(w, statusFor(err), err.Error())
			return
		}
	}
	s.sendJSON(w, http.StatusOK, nil)
}

// Event journal endpoint

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.sendError(w, http.StatusNotFound, "event journal disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			s.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var records interface{}
	var err error
	if kind := r.URL.Query().Get("kind"); kind != "" {
		records, err = s.journal.ByKind(r.Context(), kind, limit)
	} else {
		records, err = s.journal.Recent(r.Context(), limit)
	}
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, records)
}
