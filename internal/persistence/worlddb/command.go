package worlddb

// Command is a unit of work for the persistence worker. The set of
// implementations is closed: InsertBlock, InsertLight, SetKey, Commit, Exit.
type Command interface {
	command()
}

// InsertBlock stores block type W at local position (X,Y,Z) of chunk (P,Q).
type InsertBlock struct {
	P, Q    int
	X, Y, Z int
	W       int
}

// InsertLight stores light level W at local position (X,Y,Z) of chunk (P,Q).
type InsertLight struct {
	P, Q    int
	X, Y, Z int
	W       int
}

// SetKey stores the version key of chunk (P,Q).
type SetKey struct {
	P, Q int
	Key  int
}

// Commit ends the rolling transaction and opens the next one.
type Commit struct{}

// Exit stops the worker once every earlier command has been applied.
type Exit struct{}

func (InsertBlock) command() {}
func (InsertLight) command() {}
func (SetKey) command()      {}
func (Commit) command()      {}
func (Exit) command()        {}
