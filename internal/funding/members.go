package funding

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

// Member is a funding participant eligible to receive unlocked seed.
type Member struct {
	Inserted    bool
	Enabled     bool
	URL         string
	Hash        string
	ListPointer int // index of this member in the dense list
}

// MemberCount returns the number of inserted members.
func (p *Panel) MemberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.memberList)
}

// MemberAt returns the member address at index i in the dense list.
func (p *Panel) MemberAt(i int) (common.Address, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.memberList) {
		return common.Address{}, fmt.Errorf("%w: index %d", ErrMemberNotFound, i)
	}
	return p.memberList[i], nil
}

// GetMember returns a copy of the member record for addr.
func (p *Panel) GetMember(addr common.Address) (Member, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.members[addr]
	if !ok {
		return Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, addr)
	}
	return *m, nil
}

// IsMemberEnabled reports whether addr is inserted and enabled.
func (p *Panel) IsMemberEnabled(addr common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.members[addr]
	return ok && m.Inserted && m.Enabled
}

// AddMemberToSet inserts a new enabled member. Funding-Operator only.
func (p *Panel) AddMemberToSet(caller, member common.Address, url, hash string) error {
	if !p.reg.IsFundingOperator(caller) {
		return fmt.Errorf("%w: funding operator required", ErrUnauthorized)
	}
	if member == (common.Address{}) {
		return fmt.Errorf("%w: member", ErrZeroAddress)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.members[member]; ok {
		return fmt.Errorf("%w: %s", ErrMemberExists, member)
	}

	p.members[member] = &Member{
		Inserted:    true,
		Enabled:     true,
		URL:         url,
		Hash:        hash,
		ListPointer: len(p.memberList),
	}
	p.memberList = append(p.memberList, member)

	p.logger.Info("Funding member added", zap.Stringer("member", member))
	p.emitter.Emit(events.MemberAdded{Caller: caller, Member: member, URL: url, Hash: hash})
	return nil
}

// DeleteMemberFromSet removes a member with swap-with-last removal: the last
// list element moves into the vacated slot and its stored index is updated,
// then the list shrinks. Funding-Operator only.
func (p *Panel) DeleteMemberFromSet(caller, member common.Address) error {
	if !p.reg.IsFundingOperator(caller) {
		return fmt.Errorf("%w: funding operator required", ErrUnauthorized)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[member]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, member)
	}

	last := len(p.memberList) - 1
	moved := p.memberList[last]
	p.memberList[m.ListPointer] = moved
	p.members[moved].ListPointer = m.ListPointer
	p.memberList = p.memberList[:last]
	delete(p.members, member)

	p.logger.Info("Funding member removed", zap.Stringer("member", member))
	p.emitter.Emit(events.MemberRemoved{Caller: caller, Member: member})
	return nil
}

// EnableMember re-enables a disabled member. Funding-Operator only.
func (p *Panel) EnableMember(caller, member common.Address) error {
	if !p.reg.IsFundingOperator(caller) {
		return fmt.Errorf("%w: funding operator required", ErrUnauthorized)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[member]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, member)
	}
	m.Enabled = true

	p.emitter.Emit(events.MemberEnabled{Caller: caller, Member: member})
	return nil
}

// DisableMemberByStaff disables a member. Funding-Operator only.
func (p *Panel) DisableMemberByStaff(caller, member common.Address) error {
	if !p.reg.IsFundingOperator(caller) {
		return fmt.Errorf("%w: funding operator required", ErrUnauthorized)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[member]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, member)
	}
	m.Enabled = false

	p.emitter.Emit(events.MemberDisabled{Caller: caller, Member: member, ByStaff: true})
	return nil
}

// DisableMemberByMember lets an inserted-and-enabled member disable itself.
func (p *Panel) DisableMemberByMember(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.activeMemberLocked(caller)
	if err != nil {
		return err
	}
	m.Enabled = false

	p.emitter.Emit(events.MemberDisabled{Caller: caller, Member: caller, ByStaff: false})
	return nil
}

// ChangeMemberURLByMember lets an active member update its document URL.
func (p *Panel) ChangeMemberURLByMember(caller common.Address, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.activeMemberLocked(caller)
	if err != nil {
		return err
	}
	m.URL = url

	p.emitter.Emit(events.MemberURLChanged{Member: caller, URL: url})
	return nil
}

// ChangeMemberHashByMember lets an active member update its document hash.
func (p *Panel) ChangeMemberHashByMember(caller common.Address, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.activeMemberLocked(caller)
	if err != nil {
		return err
	}
	m.Hash = hash

	p.emitter.Emit(events.MemberHashChanged{Member: caller, Hash: hash})
	return nil
}

func (p *Panel) activeMemberLocked(addr common.Address) (*Member, error) {
	m, ok := p.members[addr]
	if !ok || !m.Inserted {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, addr)
	}
	if !m.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrMemberDisabled, addr)
	}
	return m, nil
}
