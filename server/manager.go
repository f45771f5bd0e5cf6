package main

import (
	"log"
	"sort"

	"suteravr/internal/wire"
)

// instanceHandle is the manager's view of a live instance: its command queue
// and a done channel closed when its actor exits.
type instanceHandle struct {
	world wire.WorldID
	ctl   chan InstanceControl
	done  chan struct{}
}

// JoinGrant is the manager's answer to a successful join: a freshly
// allocated player id plus the target instance's command queue.
type JoinGrant struct {
	Player   wire.PlayerID
	Instance chan<- InstanceControl
	Done     <-chan struct{}
}

type managerCommand interface {
	managerCommand()
}

type spawnCmd struct {
	id    wire.InstanceID
	world wire.WorldID
	reply chan<- chan<- InstanceControl // nil when the id is occupied
}

type joinCmd struct {
	id    wire.InstanceID
	reply chan<- *JoinGrant // nil when the id does not exist
}

type snapshotCmd struct {
	reply chan<- []InstanceInfo
}

type managerShutdownCmd struct {
	reason ShutdownReason
	done   chan<- struct{}
}

func (spawnCmd) managerCommand()           {}
func (joinCmd) managerCommand()            {}
func (snapshotCmd) managerCommand()        {}
func (managerShutdownCmd) managerCommand() {}

// Manager is the registry of live instances and the player id allocator. All
// state is owned by its actor goroutine; sessions talk to it through the
// bounded command queue wrapped by the methods below.
type Manager struct {
	commands chan managerCommand
}

// NewManager starts the manager actor.
func NewManager() *Manager {
	m := &Manager{commands: make(chan managerCommand, 32)}
	go m.run()
	return m
}

func (m *Manager) run() {
	instances := make(map[wire.InstanceID]*instanceHandle)
	var nextPlayer wire.PlayerID

	for cmd := range m.commands {
		switch cmd := cmd.(type) {
		case spawnCmd:
			if _, occupied := instances[cmd.id]; occupied {
				log.Printf("[manager] instance %d already exists", cmd.id)
				cmd.reply <- nil
				continue
			}
			h := &instanceHandle{
				world: cmd.world,
				ctl:   make(chan InstanceControl, 32),
				done:  make(chan struct{}),
			}
			instances[cmd.id] = h
			metricInstances.Inc()
			go runInstance(cmd.id, cmd.world, h.ctl, h.done)
			cmd.reply <- h.ctl

		case joinCmd:
			h, ok := instances[cmd.id]
			if !ok {
				cmd.reply <- nil
				continue
			}
			nextPlayer++
			cmd.reply <- &JoinGrant{Player: nextPlayer, Instance: h.ctl, Done: h.done}

		case snapshotCmd:
			ids := make([]wire.InstanceID, 0, len(instances))
			for id := range instances {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			infos := make([]InstanceInfo, 0, len(ids))
			for _, id := range ids {
				h := instances[id]
				reply := make(chan InstanceInfo, 1)
				select {
				case h.ctl <- QueryInfo{Reply: reply}:
					select {
					case info := <-reply:
						infos = append(infos, info)
					case <-h.done:
					}
				case <-h.done:
				}
			}
			cmd.reply <- infos

		case managerShutdownCmd:
			log.Printf("[manager] shutting down %d instance(s): %s", len(instances), cmd.reason)
			for _, h := range instances {
				h.ctl <- InstanceShutdown{Reason: cmd.reason}
			}
			for _, h := range instances {
				<-h.done
			}
			metricInstances.Set(0)
			close(cmd.done)
			return
		}
	}
}

// SpawnNew launches a new instance for id, or reports false when the id is
// occupied.
func (m *Manager) SpawnNew(id wire.InstanceID, world wire.WorldID) (chan<- InstanceControl, bool) {
	reply := make(chan chan<- InstanceControl, 1)
	m.commands <- spawnCmd{id: id, world: world, reply: reply}
	ctl := <-reply
	return ctl, ctl != nil
}

// JoinInstance allocates a fresh player id for the instance, or reports false
// when the id does not exist.
func (m *Manager) JoinInstance(id wire.InstanceID) (*JoinGrant, bool) {
	reply := make(chan *JoinGrant, 1)
	m.commands <- joinCmd{id: id, reply: reply}
	grant := <-reply
	return grant, grant != nil
}

// Snapshot returns a point-in-time view of every live instance.
func (m *Manager) Snapshot() []InstanceInfo {
	reply := make(chan []InstanceInfo, 1)
	m.commands <- snapshotCmd{reply: reply}
	return <-reply
}

// Shutdown propagates the reason to every live instance, waits for their
// actors to terminate, then stops the manager itself.
func (m *Manager) Shutdown(reason ShutdownReason) {
	done := make(chan struct{})
	m.commands <- managerShutdownCmd{reason: reason, done: done}
	<-done
}
