package vmheap

// Opcode is a single-byte VM instruction; operands (when present) are 1 or
// 2 bytes immediately following it in the Chunk's code stream, except that
// CLOSURE's constant byte is followed by one (isLocal, index) byte pair per
// captured upvalue.
type Opcode byte

const (
	// Constants / literals
	OpConst Opcode = iota
	OpNil
	OpTrue
	OpFalse

	// Stack manipulation
	OpPop
	OpDup
	OpDup2

	// Arithmetic (generic, floating point)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg

	// Arithmetic (integer-typed, spec.md §4.4 "arithmetic opcode selection")
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpUAdd
	OpUSub
	OpUMul
	OpUDiv

	// Bitwise / shift
	OpShl
	OpShr

	// Comparison
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	// Logic
	OpNot

	// Variables
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpSetGlobal
	OpDefineGlobal

	// Upvalues
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	// Control flow
	OpJump
	OpJumpIfFalse
	OpLoop

	// Functions
	OpCall
	OpReturn
	OpClosure

	// Classes / objects
	OpClassOp
	OpInherit
	OpMethod
	OpGetProperty
	OpSetProperty
	OpGetSuper
	OpGetThis
	OpCheckInstanceType

	// Containers
	OpBuildArray
	OpBuildDict
	OpBuildSet
	OpGetIndex
	OpSetIndex

	// Iterators (foreach lowering, spec.md §4.4)
	OpIterInit
	OpIterHasNext
	OpIterNext

	// Modules
	OpImportModule
	OpExportName
	OpGetModuleProperty

	// Coercions
	OpNarrowInt
	OpIntToFloat
	OpIntToStr

	// Print / halt
	OpPrint
	OpHalt
)

// NarrowKind is OP_NARROW_INT's operand byte: one sequential value per
// target integer type, in the order listed below.
type NarrowKind byte

const (
	NarrowI8 NarrowKind = iota
	NarrowI16
	NarrowI32
	NarrowI64
	NarrowU8
	NarrowU16
	NarrowU32
	NarrowU64
	NarrowUsize
)

var opcodeNames = map[Opcode]string{
	OpConst: "CONST", OpNil: "NIL", OpTrue: "TRUE", OpFalse: "FALSE",
	OpPop: "POP", OpDup: "DUP", OpDup2: "DUP2",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpNeg: "NEG",
	OpIAdd: "IADD", OpISub: "ISUB", OpIMul: "IMUL", OpIDiv: "IDIV",
	OpUAdd: "UADD", OpUSub: "USUB", OpUMul: "UMUL", OpUDiv: "UDIV",
	OpShl: "SHL", OpShr: "SHR",
	OpEqual: "EQUAL", OpNotEqual: "NOT_EQUAL", OpLess: "LESS", OpLessEqual: "LESS_EQUAL",
	OpGreater: "GREATER", OpGreaterEqual: "GREATER_EQUAL", OpNot: "NOT",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL", OpGetGlobal: "GET_GLOBAL",
	OpSetGlobal: "SET_GLOBAL", OpDefineGlobal: "DEFINE_GLOBAL",
	OpGetUpvalue: "GET_UPVALUE", OpSetUpvalue: "SET_UPVALUE", OpCloseUpvalue: "CLOSE_UPVALUE",
	OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE", OpLoop: "LOOP",
	OpCall: "CALL", OpReturn: "RETURN", OpClosure: "CLOSURE",
	OpClassOp: "CLASS_OP", OpInherit: "INHERIT", OpMethod: "METHOD",
	OpGetProperty: "GET_PROPERTY", OpSetProperty: "SET_PROPERTY",
	OpGetSuper: "GET_SUPER", OpGetThis: "GET_THIS", OpCheckInstanceType: "CHECK_INSTANCE_TYPE",
	OpBuildArray: "BUILD_ARRAY", OpBuildDict: "BUILD_DICT", OpBuildSet: "BUILD_SET",
	OpGetIndex: "GET_INDEX", OpSetIndex: "SET_INDEX",
	OpIterInit: "ITER_INIT", OpIterHasNext: "ITER_HAS_NEXT", OpIterNext: "ITER_NEXT",
	OpImportModule: "IMPORT_MODULE", OpExportName: "EXPORT_NAME", OpGetModuleProperty: "GET_MODULE_PROPERTY",
	OpNarrowInt: "NARROW_INT", OpIntToFloat: "INT_TO_FLOAT", OpIntToStr: "INT_TO_STR",
	OpPrint: "PRINT_OP", OpHalt: "HALT",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
