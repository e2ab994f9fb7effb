package accel

const gaussianWGSL = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(2) var<uniform> params: vec4<f32>;
@group(0) @binding(3) var<uniform> weights: array<vec4<f32>, 8>;

fn weight(i: i32) -> f32 {
    let k = u32(abs(i));
    return weights[k / 4u][k % 4u];
}

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = vec2<i32>(textureDimensions(src));
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    if (p.x >= size.x || p.y >= size.y) {
        return;
    }
    let r = i32(params.x);
    var acc = vec4<f32>(0.0, 0.0, 0.0, 0.0);
    for (var dy: i32 = -r; dy <= r; dy = dy + 1) {
        let wy = weight(dy);
        for (var dx: i32 = -r; dx <= r; dx = dx + 1) {
            let q = clamp(p + vec2<i32>(dx, dy), vec2<i32>(0, 0), size - vec2<i32>(1, 1));
            acc = acc + textureLoad(src, q, 0) * (weight(dx) * wy);
        }
    }
    textureStore(dst, p, acc);
}
`

const sobelWGSL = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(2) var<uniform> params: vec4<f32>;

fn luma(p: vec2<i32>, size: vec2<i32>) -> f32 {
    let q = clamp(p, vec2<i32>(0, 0), size - vec2<i32>(1, 1));
    let c = textureLoad(src, q, 0);
    return dot(c.rgb, vec3<f32>(0.2126, 0.7152, 0.0722));
}

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = vec2<i32>(textureDimensions(src));
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    if (p.x >= size.x || p.y >= size.y) {
        return;
    }
    let tl = luma(p + vec2<i32>(-1, -1), size);
    let t = luma(p + vec2<i32>(0, -1), size);
    let tr = luma(p + vec2<i32>(1, -1), size);
    let l = luma(p + vec2<i32>(-1, 0), size);
    let r = luma(p + vec2<i32>(1, 0), size);
    let bl = luma(p + vec2<i32>(-1, 1), size);
    let b = luma(p + vec2<i32>(0, 1), size);
    let br = luma(p + vec2<i32>(1, 1), size);
    let gx = (tr + 2.0 * r + br) - (tl + 2.0 * l + bl);
    let gy = (bl + 2.0 * b + br) - (tl + 2.0 * t + tr);
    let m = clamp(sqrt(gx * gx + gy * gy) * params.x, 0.0, 1.0);
    textureStore(dst, p, vec4<f32>(m, m, m, 1.0));
}
`

const colorMatrixWGSL = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(2) var<uniform> m: array<vec4<f32>, 5>;

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = vec2<i32>(textureDimensions(src));
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    if (p.x >= size.x || p.y >= size.y) {
        return;
    }
    let c = textureLoad(src, p, 0);
    let o = vec4<f32>(dot(m[0], c), dot(m[1], c), dot(m[2], c), dot(m[3], c)) + m[4];
    textureStore(dst, p, clamp(o, vec4<f32>(0.0, 0.0, 0.0, 0.0), vec4<f32>(1.0, 1.0, 1.0, 1.0)));
}
`

// alpha blends the top of the stack (binding 0) over the entry beneath it.
const alphaWGSL = `
@group(0) @binding(0) var top: texture_2d<f32>;
@group(0) @binding(1) var under: texture_2d<f32>;
@group(0) @binding(2) var dst: texture_storage_2d<$FORMAT, write>;
@group(0) @binding(3) var<uniform> params: vec4<f32>;

@compute @workgroup_size($TILE_W, $TILE_H)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = vec2<i32>(textureDimensions(top));
    let p = vec2<i32>(vec2<u32>(id.x, id.y));
    if (p.x >= size.x || p.y >= size.y) {
        return;
    }
    let a = textureLoad(top, p, 0);
    let b = textureLoad(under, p, 0);
    textureStore(dst, p, mix(b, a, params.x));
}
`
