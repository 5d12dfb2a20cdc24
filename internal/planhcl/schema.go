package planhcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of a plan file.
type fileRoot struct {
	Operators []*operatorBlock `hcl:"operator,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type operatorBlock struct {
	Kind        string          `hcl:"kind,label"`
	Name        string          `hcl:"name,label"`
	Inputs      hcl.Expression  `hcl:"inputs,optional"`
	Parallelism hcl.Expression  `hcl:"parallelism,optional"`
	Arguments   *argumentsBlock `hcl:"arguments,block"`
	DeclRange   hcl.Range       `hcl:",def_range"`
}

type argumentsBlock struct {
	Body hcl.Body `hcl:",remain"`
}
