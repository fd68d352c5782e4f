package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func findDef(defs []Definition, name string) *Definition {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

func findRef(refs []Reference, name string, kind RefKind) *Reference {
	for i := range refs {
		if refs[i].Name == name && refs[i].Kind == kind {
			return &refs[i]
		}
	}
	return nil
}

func findImport(imports []Import, source string) *Import {
	for i := range imports {
		if imports[i].Source == source {
			return &imports[i]
		}
	}
	return nil
}

func parseSource(t *testing.T, path, src string) *Result {
	t.Helper()
	p := NewTreeSitterParser()
	defer p.Close()
	res, err := p.Parse(context.Background(), path, []byte(src))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_SupportedLanguages
// ---------------------------------------------------------------------------

func TestTreeSitterParser_SupportedLanguages(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	langs := p.SupportedLanguages()
	assert.Len(t, langs, 4)

	langSet := make(map[Language]bool, len(langs))
	for _, l := range langs {
		langSet[l] = true
	}
	assert.True(t, langSet[LangGo])
	assert.True(t, langSet[LangPython])
	assert.True(t, langSet[LangRust])
	assert.True(t, langSet[LangTypeScript])
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Go
// ---------------------------------------------------------------------------

const goSource = `package auth

import (
	"fmt"
	urls "net/url"
)

// User is an authenticated account.
type User struct {
	Name string
}

// Login validates credentials and returns a session token.
func Login(name, password string) (string, error) {
	token := issueToken(name)
	fmt.Println(token)
	return token, nil
}

func issueToken(name string) string {
	return "tok-" + name
}

// Validate checks the user record.
func (u *User) Validate(strict bool) error {
	return nil
}
`

func TestTreeSitterParser_Go(t *testing.T) {
	res := parseSource(t, "auth/login.go", goSource)
	assert.Equal(t, LangGo, res.Language)
	assert.NotZero(t, res.ContentHash)

	login := findDef(res.Definitions, "Login")
	require.NotNil(t, login)
	assert.Equal(t, DefFunction, login.Kind)
	assert.True(t, login.IsPublic)
	assert.True(t, login.TypeHintsPresent)
	assert.Equal(t, 2, login.ParamCount)
	assert.Contains(t, login.Signature, "Login")
	assert.Contains(t, login.Docstring, "validates credentials")
	assert.Greater(t, login.LineEnd, login.LineStart)

	issue := findDef(res.Definitions, "issueToken")
	require.NotNil(t, issue)
	assert.False(t, issue.IsPublic)
	assert.Empty(t, issue.Docstring)

	validate := findDef(res.Definitions, "Validate")
	require.NotNil(t, validate)
	assert.Equal(t, "User", validate.Receiver)
	assert.Equal(t, 1, validate.ParamCount)

	user := findDef(res.Definitions, "User")
	require.NotNil(t, user)
	assert.Equal(t, DefClass, user.Kind)
	assert.Contains(t, user.Docstring, "authenticated account")

	fmtImp := findImport(res.Imports, "fmt")
	require.NotNil(t, fmtImp)
	assert.Empty(t, fmtImp.Alias)
	urlImp := findImport(res.Imports, "net/url")
	require.NotNil(t, urlImp)
	assert.Equal(t, "urls", urlImp.Alias)

	call := findRef(res.References, "issueToken", RefCall)
	require.NotNil(t, call)
	assert.Equal(t, 1, call.ArgCount)
	assert.Equal(t, "Login", call.EnclosingFunc)

	println := findRef(res.References, "Println", RefCall)
	require.NotNil(t, println)
	assert.Equal(t, "fmt", println.Receiver)
}

func TestGoExtractor_RouteEndpoints(t *testing.T) {
	src := `package main

import "net/http"

func routes(mux *http.ServeMux) {
	mux.HandleFunc("/users", listUsers)
}
`
	res := parseSource(t, "routes.go", src)
	routes := findDef(res.Definitions, "routes")
	require.NotNil(t, routes)
	require.Len(t, routes.Endpoints, 1)
	assert.Equal(t, "http", routes.Endpoints[0].Kind)
	assert.Equal(t, "ANY", routes.Endpoints[0].Method)
	assert.Equal(t, "/users", routes.Endpoints[0].Path)
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Python
// ---------------------------------------------------------------------------

const pySource = `import os
import numpy as np
from .auth import login as do_login
from legacy import *


def fetch_user(user_id: int) -> dict:
    """Load one user from the store."""
    path = os.path.join("users", str(user_id))
    return read(path)


def _clean(raw):
    return raw.strip()


class Session(BaseSession):
    """A login session."""

    def refresh(self, force: bool = False) -> None:
        """Extend the session lifetime."""
        do_login(self.user)
`

func TestTreeSitterParser_Python(t *testing.T) {
	res := parseSource(t, "app/session.py", pySource)
	assert.Equal(t, LangPython, res.Language)

	fetch := findDef(res.Definitions, "fetch_user")
	require.NotNil(t, fetch)
	assert.Equal(t, DefFunction, fetch.Kind)
	assert.True(t, fetch.IsPublic)
	assert.True(t, fetch.TypeHintsPresent)
	assert.Equal(t, 1, fetch.ParamCount)
	assert.Equal(t, "Load one user from the store.", fetch.Docstring)

	clean := findDef(res.Definitions, "_clean")
	require.NotNil(t, clean)
	assert.False(t, clean.IsPublic)
	assert.False(t, clean.TypeHintsPresent)
	assert.Empty(t, clean.Docstring)

	session := findDef(res.Definitions, "Session")
	require.NotNil(t, session)
	assert.Equal(t, DefClass, session.Kind)
	assert.Equal(t, "A login session.", session.Docstring)

	refresh := findDef(res.Definitions, "refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, "Session", refresh.Receiver)
	assert.Equal(t, 1, refresh.ParamCount, "self is not counted")

	base := findRef(res.References, "BaseSession", RefTypeRef)
	require.NotNil(t, base)
	assert.Equal(t, "Session", base.EnclosingFunc)

	osImp := findImport(res.Imports, "os")
	require.NotNil(t, osImp)
	npImp := findImport(res.Imports, "numpy")
	require.NotNil(t, npImp)
	assert.Equal(t, "np", npImp.Alias)

	authImp := findImport(res.Imports, ".auth")
	require.NotNil(t, authImp)
	assert.True(t, authImp.IsRelative)
	assert.Equal(t, []string{"login"}, authImp.Names)
	assert.Equal(t, "do_login", authImp.Alias)

	legacyImp := findImport(res.Imports, "legacy")
	require.NotNil(t, legacyImp)
	assert.True(t, legacyImp.IsWildcard)

	call := findRef(res.References, "do_login", RefCall)
	require.NotNil(t, call)
	assert.Equal(t, "refresh", call.EnclosingFunc)
	assert.Equal(t, 1, call.ArgCount)
}

func TestPyExtractor_DecoratorEndpoints(t *testing.T) {
	src := `@app.get("/users/{id}")
def get_user(user_id: int) -> dict:
    """Fetch a user."""
    return {}
`
	res := parseSource(t, "api.py", src)
	def := findDef(res.Definitions, "get_user")
	require.NotNil(t, def)
	require.Len(t, def.Endpoints, 1)
	assert.Equal(t, "GET", def.Endpoints[0].Method)
	assert.Equal(t, "/users/{id}", def.Endpoints[0].Path)
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_TypeScript
// ---------------------------------------------------------------------------

const tsSource = `import { login, logout } from "./auth";
import * as db from "./db";
export { Session } from "./session";

/** Fetches a user by id. */
export function fetchUser(id: number): User {
  return db.load(id);
}

const toKey = (id: number): string => "user:" + id;

export class AdminUser extends User {
  promote(level: number): void {
    login(this.name);
  }
}
`

func TestTreeSitterParser_TypeScript(t *testing.T) {
	res := parseSource(t, "src/user.ts", tsSource)
	assert.Equal(t, LangTypeScript, res.Language)

	fetch := findDef(res.Definitions, "fetchUser")
	require.NotNil(t, fetch)
	assert.True(t, fetch.IsPublic)
	assert.True(t, fetch.TypeHintsPresent)
	assert.Equal(t, 1, fetch.ParamCount)
	assert.Contains(t, fetch.Docstring, "Fetches a user")

	toKey := findDef(res.Definitions, "toKey")
	require.NotNil(t, toKey)
	assert.Equal(t, DefFunction, toKey.Kind)
	assert.False(t, toKey.IsPublic)

	admin := findDef(res.Definitions, "AdminUser")
	require.NotNil(t, admin)
	assert.Equal(t, DefClass, admin.Kind)
	assert.True(t, admin.IsPublic)

	promote := findDef(res.Definitions, "promote")
	require.NotNil(t, promote)
	assert.Equal(t, "AdminUser", promote.Receiver)

	extends := findRef(res.References, "User", RefTypeRef)
	require.NotNil(t, extends)

	authImp := findImport(res.Imports, "./auth")
	require.NotNil(t, authImp)
	assert.True(t, authImp.IsRelative)
	assert.ElementsMatch(t, []string{"login", "logout"}, authImp.Names)

	dbImp := findImport(res.Imports, "./db")
	require.NotNil(t, dbImp)
	assert.True(t, dbImp.IsWildcard)
	assert.Equal(t, "db", dbImp.Alias)

	sessionImp := findImport(res.Imports, "./session")
	require.NotNil(t, sessionImp)
	assert.True(t, sessionImp.IsReExport)
	assert.Equal(t, []string{"Session"}, sessionImp.Names)

	call := findRef(res.References, "load", RefCall)
	require.NotNil(t, call)
	assert.Equal(t, "db", call.Receiver)
	assert.Equal(t, "fetchUser", call.EnclosingFunc)
}

func TestTsExtractor_RouteEndpoints(t *testing.T) {
	src := `export function register(app: Express): void {
  app.post("/login", handleLogin);
}
`
	res := parseSource(t, "routes.ts", src)
	reg := findDef(res.Definitions, "register")
	require.NotNil(t, reg)
	require.Len(t, reg.Endpoints, 1)
	assert.Equal(t, "POST", reg.Endpoints[0].Method)
	assert.Equal(t, "/login", reg.Endpoints[0].Path)
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Rust
// ---------------------------------------------------------------------------

const rsSource = `use std::collections::HashMap;
use crate::db::{open, Pool as DbPool};
use crate::util::*;

/// A login session.
pub struct Session {
    user: String,
}

impl Session {
    /// Refreshes the session.
    pub fn refresh(&self, force: bool) -> bool {
        open(&self.user);
        true
    }
}

fn helper(n: u32) -> u32 {
    n + 1
}
`

func TestTreeSitterParser_Rust(t *testing.T) {
	res := parseSource(t, "src/session.rs", rsSource)
	assert.Equal(t, LangRust, res.Language)

	session := findDef(res.Definitions, "Session")
	require.NotNil(t, session)
	assert.Equal(t, DefClass, session.Kind)
	assert.True(t, session.IsPublic)
	assert.Equal(t, "A login session.", session.Docstring)

	refresh := findDef(res.Definitions, "refresh")
	require.NotNil(t, refresh)
	assert.True(t, refresh.IsPublic)
	assert.Equal(t, "Session", refresh.Receiver)
	assert.Equal(t, 1, refresh.ParamCount, "self is not counted")
	assert.Equal(t, "Refreshes the session.", refresh.Docstring)

	helper := findDef(res.Definitions, "helper")
	require.NotNil(t, helper)
	assert.False(t, helper.IsPublic)

	hashImp := findImport(res.Imports, "std::collections")
	require.NotNil(t, hashImp)
	assert.Equal(t, []string{"HashMap"}, hashImp.Names)

	openImp := findImport(res.Imports, "crate::db")
	require.NotNil(t, openImp)
	assert.True(t, openImp.IsRelative)
	assert.Equal(t, []string{"open"}, openImp.Names)

	var poolImp *Import
	for i := range res.Imports {
		if res.Imports[i].Alias == "DbPool" {
			poolImp = &res.Imports[i]
		}
	}
	require.NotNil(t, poolImp)
	assert.Equal(t, []string{"Pool"}, poolImp.Names)

	wildcard := findImport(res.Imports, "crate::util")
	require.NotNil(t, wildcard)
	assert.True(t, wildcard.IsWildcard)

	call := findRef(res.References, "open", RefCall)
	require.NotNil(t, call)
	assert.Equal(t, "refresh", call.EnclosingFunc)
	assert.Equal(t, 1, call.ArgCount)
}

// ---------------------------------------------------------------------------
// Structural normalization
// ---------------------------------------------------------------------------

func TestParse_ReformatKeepsHash(t *testing.T) {
	compact := `package x

func Add(a, b int) int { return a + b }
`
	spread := `package x

func Add(a, b int) int {
	// sum the operands
	return a +
		b
}
`
	d1 := findDef(parseSource(t, "a.go", compact).Definitions, "Add")
	d2 := findDef(parseSource(t, "b.go", spread).Definitions, "Add")
	require.NotNil(t, d1)
	require.NotNil(t, d2)
	assert.Equal(t, d1.Hash(), d2.Hash(), "formatting and comments must not change the hash")
}

func TestParse_DocstringChangesHash(t *testing.T) {
	before := `package x

// Add sums two numbers.
func Add(a, b int) int { return a + b }
`
	after := `package x

// Add sums two integers, saturating on overflow.
func Add(a, b int) int { return a + b }
`
	d1 := findDef(parseSource(t, "a.go", before).Definitions, "Add")
	d2 := findDef(parseSource(t, "b.go", after).Definitions, "Add")
	require.NotNil(t, d1)
	require.NotNil(t, d2)
	assert.NotEqual(t, d1.Hash(), d2.Hash(), "doc edits must change the hash")
}

// ---------------------------------------------------------------------------
// Error handling and incremental re-parse
// ---------------------------------------------------------------------------

func TestParse_SyntaxErrorIsLocal(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), "broken.go", []byte("package x\n\nfunc {{{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestParse_UnsupportedFile(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), "README.md", []byte("# hi"))
	require.Error(t, err)
}

func TestReparse_FallsBackWithoutCache(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	src := []byte("package x\n\nfunc A() {}\n")
	res, err := p.Reparse(context.Background(), "x.go", src, Edit{})
	require.NoError(t, err)
	require.NotNil(t, findDef(res.Definitions, "A"))
}

func TestParseChanged_MatchesFullParse(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	before := `def login(username: str) -> bool:
    """Check credentials."""
    return True


def logout(username: str) -> None:
    """Drop the session."""
    return None
`
	after := `def login(username: str, otp: str) -> bool:
    """Check credentials."""
    return True


def logout(username: str) -> None:
    """Drop the session."""
    return None
`
	_, err := p.Parse(context.Background(), "auth.py", []byte(before))
	require.NoError(t, err)

	incremental, err := p.ParseChanged(context.Background(), "auth.py", []byte(after))
	require.NoError(t, err)

	fresh := parseSource(t, "auth2.py", after)
	require.Len(t, incremental.Definitions, len(fresh.Definitions))
	login := findDef(incremental.Definitions, "login")
	require.NotNil(t, login)
	assert.Equal(t, 2, login.ParamCount)
	assert.Equal(t, findDef(fresh.Definitions, "login").Hash(), login.Hash())
	logout := findDef(incremental.Definitions, "logout")
	require.NotNil(t, logout)
	assert.Equal(t, findDef(fresh.Definitions, "logout").Hash(), logout.Hash(),
		"untouched definitions keep their hash")
}

func TestParseChanged_FailedReparseDropsCachedTree(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	good := []byte("package x\n\nfunc A() {}\n")
	_, err := p.Parse(context.Background(), "x.go", good)
	require.NoError(t, err)

	_, err = p.ParseChanged(context.Background(), "x.go", []byte("package x\n\nfunc {{{"))
	require.Error(t, err)
	p.mu.Lock()
	_, cached := p.trees["x.go"]
	p.mu.Unlock()
	assert.False(t, cached, "a tree that carries a failed edit cannot be reused")

	// The next change falls back to a clean full parse.
	fixed := []byte("package x\n\nfunc A() {}\n\nfunc B() {}\n")
	res, err := p.ParseChanged(context.Background(), "x.go", fixed)
	require.NoError(t, err)
	require.NotNil(t, findDef(res.Definitions, "B"))
}
