package index

import "github.com/larose/ingest/search/schema"

// UserOperation is a mutation as submitted by a caller, before the writer
// assigned it an opstamp. Implemented by AddUserOp and DeleteUserOp only.
type UserOperation interface {
	isUserOperation()
}

type AddUserOp struct {
	Document *schema.Document
}

type DeleteUserOp struct {
	Term schema.Term
}

func (AddUserOp) isUserOperation()    {}
func (DeleteUserOp) isUserOperation() {}

func UserAdd(doc *schema.Document) UserOperation {
	return AddUserOp{Document: doc}
}

func UserDelete(term schema.Term) UserOperation {
	return DeleteUserOp{Term: term}
}

// Operation is a stamped mutation: the only thing that enters the pending
// log and commit batches.
type Operation interface {
	GetOpstamp() Opstamp
}

type AddOperation struct {
	Opstamp  Opstamp
	Document *schema.Document
}

type DeleteOperation struct {
	Opstamp Opstamp
	Term    schema.Term
}

func (op AddOperation) GetOpstamp() Opstamp {
	return op.Opstamp
}

func (op DeleteOperation) GetOpstamp() Opstamp {
	return op.Opstamp
}
