package types

import "sync"

// BuiltinName is the name of the reference every project carries.
const BuiltinName = "Boo.Lang"

var builtin = sync.OnceValue(func() *Table {
	prim := func(name string, kind Kind, alias string) *Type {
		return &Type{Name: name, Kind: kind, Alias: alias}
	}
	in := func(ns, name string, kind Kind) *Type {
		return &Type{Name: name, Namespace: ns, Kind: kind}
	}

	return NewTable(BuiltinName,
		prim("object", Class, "System.Object"),
		prim("duck", Class, "System.Object"),
		prim("string", Class, "System.String"),
		prim("bool", Struct, "System.Boolean"),
		prim("byte", Struct, "System.Byte"),
		prim("char", Struct, "System.Char"),
		prim("short", Struct, "System.Int16"),
		prim("int", Struct, "System.Int32"),
		prim("long", Struct, "System.Int64"),
		prim("single", Struct, "System.Single"),
		prim("double", Struct, "System.Double"),
		prim("decimal", Struct, "System.Decimal"),
		prim("void", Struct, "System.Void"),
		prim("date", Struct, "System.DateTime"),
		prim("timespan", Struct, "System.TimeSpan"),
		prim("regex", Class, "System.Text.RegularExpressions.Regex"),
		prim("callable", Interface, "Boo.Lang.ICallable"),

		in("System", "Object", Class),
		in("System", "String", Class),
		in("System", "Boolean", Struct),
		in("System", "Int32", Struct),
		in("System", "Int64", Struct),
		in("System", "Double", Struct),
		in("System", "DateTime", Struct),
		in("System", "TimeSpan", Struct),
		in("System", "Exception", Class),
		in("System", "EventArgs", Class),
		in("System", "EventHandler", Class),
		in("System", "IDisposable", Interface),
		in("System", "Console", Class),
		in("System", "Math", Class),
		in("System", "Array", Class),
		in("System.Collections", "IEnumerable", Interface),
		in("System.Collections", "ArrayList", Class),
		in("System.Collections.Generic", "List", Class),
		in("System.Collections.Generic", "Dictionary", Class),
		in("System.Collections.Generic", "IEnumerable", Interface),
		in("System.IO", "File", Class),
		in("System.IO", "Path", Class),
		in("System.IO", "Stream", Class),
		in("System.Text", "StringBuilder", Class),
		in("Boo.Lang", "List", Class),
		in("Boo.Lang", "Hash", Class),
		in("Boo.Lang", "ICallable", Interface),
		in("Boo.Lang", "Builtins", Class),
	)
})

// Builtin returns the table of types that are always referenced.
func Builtin() *Table {
	return builtin()
}
