/*
Package lottery contains a lottery smart contract. Players enter it by
transferring GAS to the contract, the manager picks a random winner who then
gets the whole pot, and a new round starts with an empty list of players.
*/
package lottery

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// MinStake is the exclusive lower bound of an entry, 0.01 GAS.
const MinStake = 1_000_000

// Serialized stack item type prefixes.
const (
	byteStringType = 0x28
	bufferType     = 0x30
)

const (
	managerKey    = "m"
	playersKey    = "p"
	roundKey      = "r"
	lastWinnerKey = "w"
)

// _deploy stores the lottery manager. It's the hash passed as deployment data
// or the sender of the deploying transaction if there is no data.
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		return
	}
	var manager interop.Hash160
	if data != nil {
		manager = managerFromData(data)
	} else {
		manager = runtime.GetScriptContainer().Sender
	}
	ctx := storage.GetContext()
	storage.Put(ctx, managerKey, manager)
	storage.Put(ctx, roundKey, 0)
}

// managerFromData accepts a 20-byte ByteString or Buffer and panics on
// anything else.
func managerFromData(data any) interop.Hash160 {
	raw := std.Serialize(data)
	if len(raw) != interop.Hash160Len+2 || (raw[0] != byteStringType && raw[0] != bufferType) ||
		raw[1] != interop.Hash160Len {
		panic("invalid manager hash")
	}
	return interop.Hash160(data.(string))
}

// OnNEP17Payment is the lottery entry point, every accepted GAS transfer
// is an entry of its sender.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	if !runtime.GetCallingScriptHash().Equals(gas.Hash) {
		panic("only GAS is accepted")
	}
	if from == nil {
		panic("minted GAS can't enter")
	}
	if amount <= MinStake {
		panic("stake is too small")
	}
	ctx := storage.GetContext()
	players := getPlayers(ctx)
	players = append(players, from)
	storage.Put(ctx, playersKey, std.Serialize(players))
	runtime.Notify("Entered", from, amount)
}

// GetPlayers returns the players of the current round in the order they
// entered.
func GetPlayers() []interop.Hash160 {
	return getPlayers(storage.GetReadOnlyContext())
}

func getPlayers(ctx storage.Context) []interop.Hash160 {
	data := storage.Get(ctx, playersKey)
	if data == nil {
		return []interop.Hash160{}
	}
	return std.Deserialize(data.([]byte)).([]interop.Hash160)
}

// GetManager returns the lottery manager.
func GetManager() interop.Hash160 {
	return getManager(storage.GetReadOnlyContext())
}

func getManager(ctx storage.Context) interop.Hash160 {
	return interop.Hash160(storage.Get(ctx, managerKey).(string))
}

// GetMinStake returns the exclusive lower bound of an entry.
func GetMinStake() int {
	return MinStake
}

// GetPot returns the amount of GAS the winner of the current round gets.
func GetPot() int {
	return gas.BalanceOf(runtime.GetExecutingScriptHash())
}

// GetRound returns the number of completed draws.
func GetRound() int {
	return storage.Get(storage.GetReadOnlyContext(), roundKey).(int)
}

// GetLastWinner returns the winner of the latest draw or nil if there were no
// draws yet.
func GetLastWinner() interop.Hash160 {
	w := storage.Get(storage.GetReadOnlyContext(), lastWinnerKey)
	if w == nil {
		return nil
	}
	return interop.Hash160(w.(string))
}

// PickWinner chooses a random player, sends the pot to it and starts a new
// round. Only the manager can do that.
func PickWinner() interop.Hash160 {
	ctx := storage.GetContext()
	if !runtime.CheckWitness(getManager(ctx)) {
		panic("only manager can pick a winner")
	}
	players := getPlayers(ctx)
	if len(players) == 0 {
		panic("no players")
	}
	winner := players[runtime.GetRandom()%len(players)]

	round := storage.Get(ctx, roundKey).(int) + 1
	storage.Delete(ctx, playersKey)
	storage.Put(ctx, roundKey, round)
	storage.Put(ctx, lastWinnerKey, winner)

	self := runtime.GetExecutingScriptHash()
	prize := gas.BalanceOf(self)
	if !gas.Transfer(self, winner, prize, nil) {
		panic("failed to pay the winner")
	}
	runtime.Notify("WinnerPicked", winner, prize, round)
	return winner
}

// Verify allows the contract account to be used as a transaction signer
// witnessed by the manager.
func Verify() bool {
	return runtime.CheckWitness(getManager(storage.GetReadOnlyContext()))
}

// Update updates the contract, only the manager can do that.
func Update(nef, manifest []byte) {
	if !runtime.CheckWitness(getManager(storage.GetReadOnlyContext())) {
		panic("only manager can update")
	}
	management.Update(nef, manifest)
}

// Destroy destroys the contract, only the manager can do that. The pot is
// lost if there are any players left.
func Destroy() {
	if !runtime.CheckWitness(getManager(storage.GetReadOnlyContext())) {
		panic("only manager can destroy")
	}
	management.Destroy()
}
