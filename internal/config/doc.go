// Package config loads network definitions from HCL files. A network names
// the transport and registry of one deployed instance along with the oracle
// type, oracle and product to register on it, much like a truffle networks
// entry. Values may be taken from the environment with env("NAME") or
// env("NAME", "default").
package config
